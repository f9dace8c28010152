// Package relayhttp exposes the chat relay over HTTP: the automation webhook
// relay, its legacy LLM-chain variant and the direct completion endpoint.
// Each handler keeps its own error contract, so some upstream failures are
// answered with a 200 apology while the completion endpoint answers 500.
package relayhttp
