// Package agentloop implements the device automation agent loop.
//
// It pairs a language model with Android device tools and drives a
// plan/execute/verify/report cycle until the model produces a final answer
// or a limit is reached. The loop orchestrates model calls, tool execution,
// output truncation, loop detection, and retry policy.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - SessionContext: The per-task orchestrator. Owns the device handle,
//     the append-only transcript, the iteration counter and the run limits.
//   - Registry: The static tool catalog; frozen before a task starts so the
//     model's view of available tools cannot change mid-task.
//   - Executor: Validates and runs one tool call at a time against the
//     registry, classifying failures for the loop's retry policy.
//   - Transcript: The ordered record of instruction, model output, tool
//     calls and results; rendered into model messages each iteration.
//   - EventEmitter: Typed event stream for host application integration.
//
// # Quick Start
//
//	registry := agentloop.NewRegistry()
//	droidtools.Register(registry, driver)
//	registry.Freeze()
//
//	session := agentloop.NewSession(client, registry, driver, nil)
//	result, err := session.Run(ctx, "open the Settings app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Status, result.FinalAnswer)
package agentloop
