// Package agent implements the tool-calling control loop shared by the
// scheduler, planner and summary agents.
//
// A Loop alternates two states. In REASON it hands the history, its fixed
// instruction and its Registry's operations to an llm.Reasoner. A
// FinalAnswer ends the run (DONE). OperationRequests move the loop to ACT,
// where each request is executed in order and its tagged result is appended
// to the history before reasoning again. A run that is still requesting
// operations after MaxIterations steps fails with ErrIterationLimitExceeded
// and the trace so far.
//
// Operations are MCP tools. The same registration functions populate an
// agent Registry or an MCP server through ToolAdder.
package agent
