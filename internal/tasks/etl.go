package tasks

import (
	"context"
	"log/slog"
)

func extractHelper(logger *slog.Logger) Callable {
	return func(ctx context.Context, _ Kwargs) error {
		logger.DebugContext(ctx, "extract")
		return nil
	}
}

func transformHelper(logger *slog.Logger) Callable {
	return func(ctx context.Context, kwargs Kwargs) error {
		dsNodash, err := kwargs.String("ds_nodash")
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "transform", "ds_nodash", dsNodash)
		return nil
	}
}

func loadHelper(logger *slog.Logger) Callable {
	return func(ctx context.Context, kwargs Kwargs) error {
		database, err := kwargs.String("database_name")
		if err != nil {
			return err
		}
		table, err := kwargs.String("table_name")
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "load", "database_name", database, "table_name", table)
		return nil
	}
}
