package scheduler

import (
	"github.com/mattjoyce/dagwright/internal/config"
	"github.com/mattjoyce/dagwright/internal/generator"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/mattjoyce/dagwright/internal/scheduler Runner

// Runner performs one generation run.
type Runner interface {
	Run(cfg *config.Config) (*generator.Result, error)
}

// LoadFunc loads the configuration for one tick.
type LoadFunc func() (*config.Config, error)
