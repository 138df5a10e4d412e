package config

import "time"

type QueueConfig struct {
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type WorkerConfig struct {
	Environment string
	Redis       RedisConfig
	Reset       ResetConfig
	Queue       QueueConfig
	Logging     LoggingConfig
}

func LoadWorker() (*WorkerConfig, error) {
	v, err := newViper("worker", "NATOURS_WORKER")
	if err != nil {
		return nil, err
	}
	setSharedDefaults(v)
	v.SetDefault("logging.level", "info")
	v.SetDefault("queue.group", "reset-senders")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "30s")

	var cfg WorkerConfig
	if err := unmarshal(v, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
