package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/suitelabs/conductor/internal/ratelimit"
)

// EndpointRateLimit defines request limiting for an HTTP surface
type EndpointRateLimit struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requestsPerMinute"`
}

// AuthFailureThreshold defines a single threshold for auth failure blocking
type AuthFailureThreshold struct {
	Failures     int `json:"failures"`
	BlockMinutes int `json:"blockMinutes"`
}

// AuthFailureConfig defines auth failure rate limiting settings
type AuthFailureConfig struct {
	Enabled    bool                   `json:"enabled"`
	Thresholds []AuthFailureThreshold `json:"thresholds"`
}

// RuntimeConfig is the hot-reloadable service configuration
type RuntimeConfig struct {
	FreeTierLimit int                   `json:"freeTierLimit"`
	Tiers         []ratelimit.TierLimit `json:"tiers"`
	API           EndpointRateLimit     `json:"api"`
	AuthFailure   AuthFailureConfig     `json:"authFailure"`
}

// GetDefaultRuntimeConfig returns the default runtime configuration
func GetDefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		FreeTierLimit: 20,
		Tiers:         ratelimit.DefaultTierLimits(),
		API: EndpointRateLimit{
			Enabled:           true,
			RequestsPerMinute: 100,
		},
		AuthFailure: AuthFailureConfig{
			Enabled: true,
			Thresholds: []AuthFailureThreshold{
				{Failures: 5, BlockMinutes: 1},
				{Failures: 10, BlockMinutes: 5},
				{Failures: 20, BlockMinutes: 30},
			},
		},
	}
}

// RuntimeManager manages the runtime configuration with hot-reload support
type RuntimeManager struct {
	mu         sync.RWMutex
	config     RuntimeConfig
	configFile string
	watcher    *fsnotify.Watcher
	onChange   func(RuntimeConfig) // callback when config changes
}

// NewRuntimeManager loads the runtime config file, writing defaults when
// the file is missing, and starts watching it for changes.
func NewRuntimeManager(configFile string) (*RuntimeManager, error) {
	cm := &RuntimeManager{
		configFile: configFile,
	}

	if err := cm.loadConfig(); err != nil {
		log.Printf("⚠️ Runtime config file not found, using defaults: %v", err)
		cm.config = cloneRuntimeConfig(GetDefaultRuntimeConfig())
		if err := cm.saveConfig(); err != nil {
			log.Printf("⚠️ Failed to save default runtime config: %v", err)
		}
	}

	if err := cm.startWatcher(); err != nil {
		log.Printf("⚠️ Failed to start runtime config watcher: %v", err)
	}

	return cm, nil
}

// loadConfig loads configuration from file
func (cm *RuntimeManager) loadConfig() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := os.ReadFile(cm.configFile)
	if err != nil {
		return err
	}

	var config RuntimeConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return err
	}

	if err := validateRuntimeConfig(config); err != nil {
		return err
	}

	cm.config = cloneRuntimeConfig(config)
	log.Printf("✅ Runtime config loaded: freeTier=%d, tiers=%d, API=%d rpm",
		config.FreeTierLimit, len(config.Tiers), config.API.RequestsPerMinute)
	return nil
}

// saveConfig saves configuration to file
func (cm *RuntimeManager) saveConfig() error {
	dir := filepath.Dir(cm.configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	cm.mu.RLock()
	cfg := cloneRuntimeConfig(cm.config)
	cm.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cm.configFile, data, 0644)
}

// startWatcher starts file change monitoring
func (cm *RuntimeManager) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	cm.watcher = watcher

	configBase := filepath.Base(cm.configFile)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// We watch the directory; ignore unrelated files.
				if filepath.Base(event.Name) != configBase {
					continue
				}

				// Many editors update files via atomic rename/create, not only Write.
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					log.Printf("📝 Runtime config file updated, reloading...")
					if err := cm.loadConfig(); err != nil {
						log.Printf("⚠️ Failed to reload runtime config: %v", err)
						continue
					}

					cm.mu.RLock()
					cfg := cloneRuntimeConfig(cm.config)
					cb := cm.onChange
					cm.mu.RUnlock()

					if cb != nil {
						cb(cfg)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️ Runtime config watcher error: %v", err)
			}
		}
	}()

	// Watch the config file's directory to handle file creation
	dir := filepath.Dir(cm.configFile)
	if err := watcher.Add(dir); err != nil {
		// Try watching the file directly if directory watch fails
		return watcher.Add(cm.configFile)
	}
	return nil
}

// SetOnChangeCallback sets a callback function to be called when config changes
func (cm *RuntimeManager) SetOnChangeCallback(callback func(RuntimeConfig)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onChange = callback
}

// GetConfig returns the current configuration
func (cm *RuntimeManager) GetConfig() RuntimeConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cloneRuntimeConfig(cm.config)
}

// GetAPIConfig returns the API rate limit configuration
func (cm *RuntimeManager) GetAPIConfig() EndpointRateLimit {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.API
}

// GetAuthFailureConfig returns the auth failure rate limit configuration
func (cm *RuntimeManager) GetAuthFailureConfig() AuthFailureConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	cfg := cm.config.AuthFailure
	cfg.Thresholds = cloneThresholds(cfg.Thresholds)
	return cfg
}

// UpdateConfig updates the configuration and saves to file
func (cm *RuntimeManager) UpdateConfig(config RuntimeConfig) error {
	if err := validateRuntimeConfig(config); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(cm.configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := os.WriteFile(cm.configFile, data, 0644); err != nil {
		return err
	}

	cm.mu.Lock()
	cm.config = cloneRuntimeConfig(config)
	cb := cm.onChange
	cfg := cloneRuntimeConfig(cm.config)
	cm.mu.Unlock()

	log.Printf("✅ Runtime config updated: freeTier=%d, tiers=%d",
		config.FreeTierLimit, len(config.Tiers))

	if cb != nil {
		cb(cfg)
	}

	return nil
}

// Close closes the config manager and stops the file watcher
func (cm *RuntimeManager) Close() error {
	if cm.watcher != nil {
		return cm.watcher.Close()
	}
	return nil
}

func validateRuntimeConfig(config RuntimeConfig) error {
	const maxRPM = 10000         // max requests per minute
	const maxBlockMinutes = 1440 // 24 hours

	if config.FreeTierLimit < 0 {
		return fmt.Errorf("freeTierLimit must be non-negative")
	}

	if err := ratelimit.ValidateTierLimits(config.Tiers); err != nil {
		return err
	}

	if config.API.RequestsPerMinute < 0 {
		return fmt.Errorf("api.requestsPerMinute must be non-negative")
	}
	if config.API.RequestsPerMinute > maxRPM {
		return fmt.Errorf("api.requestsPerMinute cannot exceed %d", maxRPM)
	}

	for i, threshold := range config.AuthFailure.Thresholds {
		if threshold.Failures <= 0 {
			return fmt.Errorf("authFailure.thresholds[%d].failures must be positive", i)
		}
		if threshold.BlockMinutes <= 0 {
			return fmt.Errorf("authFailure.thresholds[%d].blockMinutes must be positive", i)
		}
		if threshold.BlockMinutes > maxBlockMinutes {
			return fmt.Errorf("authFailure.thresholds[%d].blockMinutes cannot exceed %d", i, maxBlockMinutes)
		}
		if i > 0 && threshold.Failures <= config.AuthFailure.Thresholds[i-1].Failures {
			return fmt.Errorf("authFailure.thresholds must be in ascending order by failures")
		}
	}

	return nil
}

func cloneRuntimeConfig(cfg RuntimeConfig) RuntimeConfig {
	if cfg.Tiers != nil {
		tiers := make([]ratelimit.TierLimit, len(cfg.Tiers))
		copy(tiers, cfg.Tiers)
		cfg.Tiers = tiers
	}
	cfg.AuthFailure.Thresholds = cloneThresholds(cfg.AuthFailure.Thresholds)
	return cfg
}

func cloneThresholds(thresholds []AuthFailureThreshold) []AuthFailureThreshold {
	if thresholds == nil {
		return nil
	}
	dst := make([]AuthFailureThreshold, len(thresholds))
	copy(dst, thresholds)
	return dst
}
