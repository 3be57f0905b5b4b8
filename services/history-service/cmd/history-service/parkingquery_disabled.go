//go:build !protogen

package main

import (
	"context"
	"log/slog"
	"net/http"
)

func setupParkingDebugRoutes(_ context.Context, _ *http.ServeMux, _ *slog.Logger) {}
