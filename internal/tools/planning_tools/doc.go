// Package planning_tools provides the operations the planner uses to
// delegate to the scheduler and summary agents, to propose a plan for
// confirmation, and to commit a confirmed plan.
package planning_tools
