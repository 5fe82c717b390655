package router

const classifyInstruction = `You classify requests to a personal calendar assistant.

Intents:
- scheduling: add, change, remove or look up calendar events, or find free time
- planning: break a goal or project into tasks and plan them over time
- summary: review, summarize or analyze how time was spent
- preference: state or change a personal preference or habit
- unknown: none of the above

Reply with JSON only:
{"intent": "<intent>", "confidence": 0.0-1.0, "params": {"key": "value"}, "reasoning": "<one sentence>"}`

const classifyPrompt = `User input: %s

Classify the intent and reply with the JSON object.`
