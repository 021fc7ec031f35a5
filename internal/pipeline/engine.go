// Package pipeline orchestrates the two end-to-end flows an agent runs per
// database: backing up and uploading, and restoring from an uploaded
// artifact. Both flows are built around the same Engine so they share
// config, credentials, and the generated_id file lock.
package pipeline

import (
	"dbbackup-agent/internal/agentconfig"
	"dbbackup-agent/internal/controlplane"
	"dbbackup-agent/internal/filelock"
	"dbbackup-agent/internal/logger"
)

// Engine holds everything a backup or restore run needs.
type Engine struct {
	cfg       *agentconfig.AgentConfig
	databases *agentconfig.DatabasesConfig
	log       logger.Logger
	api       *controlplane.Client
	locks     *filelock.Registry
	masterKey []byte
	serverURL string
}

// New builds an Engine ready to run backups and restores. serverURL is the
// agent's own control-plane base URL, needed to address the local storage
// provider's tus endpoint.
func New(cfg *agentconfig.AgentConfig, databases *agentconfig.DatabasesConfig, log logger.Logger, api *controlplane.Client, locks *filelock.Registry, masterKey []byte, serverURL string) *Engine {
	return &Engine{
		cfg:       cfg,
		databases: databases,
		log:       log,
		api:       api,
		locks:     locks,
		masterKey: masterKey,
		serverURL: serverURL,
	}
}

// recoverPanic converts a panic in a dispatched goroutine into a structured
// log line instead of crashing the process, isolating one failure domain
// from the rest of the agent.
func (e *Engine) recoverPanic(context string) {
	if r := recover(); r != nil {
		e.log.Error("recovered from panic", "context", context, "panic", r)
	}
}
