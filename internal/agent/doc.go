// Package agent launches tasks on an external agent service and exposes each
// one as a [Handle].
//
// A [Runner] is the contract with the service: it receives a prompt and a
// working directory, streams raw JSON messages through a [Session], and may
// block on [Session.Ask] when the agent poses an interactive question.
// Concrete runners live in sub-packages (claudecli, anthropicapi); agenttest
// provides a scripted runner for tests.
//
// A Handle turns a run into an event stream. Events emitted before anyone
// subscribes are replayed to every subscriber. The stream always ends with
// exactly one complete event whose payload is {"exitCode":N}: 0 on success,
// 1 on failure or abort. A failed run emits an error event first.
package agent
