// Package pipeline runs the multi-agent campaign workflow.
//
// A run moves through a fixed sequence of phases:
//
//	planning -> researching -> creating -> auditing -> visual_generating -> completed
//
// Any phase may instead move the run to failed, which is absorbing. Each phase
// returns a tagged Result; the Controller switches on its Kind and never lets
// a panic or an untyped error escape a phase boundary.
//
// # Routing
//
// Phases never pick a model themselves. They describe a Task (task type,
// complexity, whether world knowledge is needed) and hand it to an Invoker,
// which asks the router for a decision and calls the local bridge or the
// cloud client. A local failure marks the backend unhealthy and retries the
// task on the cloud tier for its complexity; callers only see the cloud
// outcome.
//
// # Progress
//
// Every step is announced as a thought with status "thinking" and re-emitted
// under the same agent and action once it finishes, so a client that upserts
// by identity key shows one entry per step. A run emits exactly one terminal
// frame: the campaign result, or an error message.
package pipeline
