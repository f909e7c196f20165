package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const DefaultQueueType = "general"

// QueuePolicy is the hot-reloadable part of the queue configuration.
type QueuePolicy struct {
	DefaultType  string        `mapstructure:"defaultType"`
	AllowedTypes []string      `mapstructure:"allowedTypes"`
	LockWait     time.Duration `mapstructure:"lockWait"`
}

func DefaultQueuePolicy() QueuePolicy {
	return QueuePolicy{
		DefaultType:  DefaultQueueType,
		AllowedTypes: []string{},
		LockWait:     3 * time.Second,
	}
}

// MaxQueueTypeLength matches the width of tickets.queue_type.
const MaxQueueTypeLength = 64

// Allows reports whether queueType may be used.
func (p QueuePolicy) Allows(queueType string) bool {
	_, ok := p.Canonical(queueType)
	return ok
}

// Canonical returns the stored spelling of queueType. With an allow-list the
// listed spelling wins over the caller's casing; an empty allow-list accepts
// any tag that fits the column.
func (p QueuePolicy) Canonical(queueType string) (string, bool) {
	queueType = strings.TrimSpace(queueType)
	if queueType == "" || utf8.RuneCountInString(queueType) > MaxQueueTypeLength {
		return "", false
	}
	if len(p.AllowedTypes) == 0 {
		return queueType, true
	}
	for _, allowed := range p.AllowedTypes {
		allowed = strings.TrimSpace(allowed)
		if strings.EqualFold(allowed, queueType) {
			return allowed, true
		}
	}
	return "", false
}

type QueuePolicySource interface {
	Get() QueuePolicy
}

// StaticQueuePolicy is a fixed QueuePolicySource.
type StaticQueuePolicy QueuePolicy

func (p StaticQueuePolicy) Get() QueuePolicy {
	return QueuePolicy(p)
}

type QueuePolicyHolder struct {
	current atomic.Value // holds QueuePolicy
}

func NewQueuePolicyHolder(cfg Config, log *zap.Logger) (*QueuePolicyHolder, error) {
	dirs := make([]string, 0, 3)
	if cfg.Queue.PolicyDir != "" {
		dirs = append(dirs, cfg.Queue.PolicyDir)
	}
	dirs = append(dirs, "/etc/queueline", ".")
	return newQueuePolicyHolder(log, dirs...)
}

func newQueuePolicyHolder(log *zap.Logger, dirs ...string) (*QueuePolicyHolder, error) {
	log = log.Named("queue.policy")

	v := viper.New()
	v.SetConfigName("queue")
	v.SetConfigType("yml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("QUEUELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultQueuePolicy()
	v.SetDefault("queue.defaultType", defaults.DefaultType)
	v.SetDefault("queue.allowedTypes", defaults.AllowedTypes)
	v.SetDefault("queue.lockWait", defaults.LockWait)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	policy, err := decodeQueuePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := &QueuePolicyHolder{}
	holder.current.Store(policy)

	if !found {
		log.Info("queue policy file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeQueuePolicy(v)
		if err != nil {
			log.Warn("queue policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("queue policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *QueuePolicyHolder) Get() QueuePolicy {
	return h.current.Load().(QueuePolicy)
}

func decodeQueuePolicy(v *viper.Viper) (QueuePolicy, error) {
	var policy QueuePolicy
	if err := v.UnmarshalKey("queue", &policy); err != nil {
		return QueuePolicy{}, err
	}
	policy.DefaultType = strings.TrimSpace(policy.DefaultType)
	if err := validateQueuePolicy(policy); err != nil {
		return QueuePolicy{}, err
	}
	return policy, nil
}

func validateQueuePolicy(p QueuePolicy) error {
	if p.DefaultType == "" {
		return errors.New("queue.defaultType cannot be empty")
	}
	if p.LockWait <= 0 {
		return fmt.Errorf("queue.lockWait must be positive, got %s", p.LockWait)
	}
	if !p.Allows(p.DefaultType) {
		return fmt.Errorf("queue.defaultType %q is not in queue.allowedTypes", p.DefaultType)
	}
	return nil
}
