package config

// Threadsafe getter functions to fetch config data.

func (cm *ConfigManager) GetLogLevel() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Logging.Level
}

func (cm *ConfigManager) GetScheduleExpr() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.ScheduleExpr()
}

func (cm *ConfigManager) GetAgentID() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Agent.AgentID
}

func (cm *ConfigManager) GetAgentName() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Agent.AgentName
}

func (cm *ConfigManager) IsServerEnabled() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Server.Enabled
}

func (cm *ConfigManager) GetServerURL() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Server.URL
}

func (cm *ConfigManager) IsMetricsEnabled() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Metrics.Enabled
}

func (cm *ConfigManager) IsJSONLog() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Logging.JSON
}
