package cliapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mahsumaktas/treliq/internal/orchestrator"
	"github.com/mahsumaktas/treliq/internal/webhook"
)

// runServer starts the webhook HTTP listener and, when schedule is
// non-empty, a background scan loop over repos at that interval. It
// blocks until the context is cancelled or the listener fails.
func runServer(ctx context.Context, deps *Dependencies, overrides func() Overrides, port int, webhookSecret, schedule string, repos []string) error {
	comps, err := Build(deps.Config, overrides(), deps.Logger, deps.Metrics)
	if err != nil {
		return err
	}
	defer comps.Close()

	secret := webhookSecret
	if secret == "" {
		secret = deps.Config.Webhook.Secret
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/webhooks", webhookHandler(ctx, comps, deps, secret))

	srv := &http.Server{Addr: ":" + strconv.Itoa(port), Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info(ctx, "server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stopScheduler := func() {}
	if schedule != "" && len(repos) > 0 {
		interval, err := time.ParseDuration(schedule)
		if err != nil {
			return err
		}
		stopScheduler = startScheduledScans(ctx, comps, deps, repos, interval)
	}

	select {
	case err := <-errCh:
		stopScheduler()
		return err
	case <-ctx.Done():
		stopScheduler()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func webhookHandler(ctx context.Context, comps *Components, deps *Dependencies, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		if !webhook.VerifySignature(secret, body, r.Header.Get("x-hub-signature-256")) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		event, err := webhook.Classify(r.Header.Get("x-github-event"), body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		status := event.Reply
		if event.Type == "pull_request" && event.Repo != "" {
			status = "accepted"
			go rescanOnEvent(ctx, comps, deps, event.Repo)
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

func rescanOnEvent(ctx context.Context, comps *Components, deps *Dependencies, repo string) {
	owner, name, err := splitOwnerRepo(repo)
	if err != nil {
		deps.Logger.Warn(ctx, "webhook rescan skipped", "repo", repo, "error", err)
		return
	}
	scanOne(ctx, comps, deps, owner, name)
}

// startScheduledScans runs a scan over every repo in repos on a fixed
// interval until ctx is cancelled, mirroring a periodic background
// worker rather than a full cron expression (the CLI flag still
// documents itself as a duration, not a cron schedule, for that
// reason).
func startScheduledScans(ctx context.Context, comps *Components, deps *Dependencies, repos []string, interval time.Duration) func() {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				for _, repo := range repos {
					owner, name, err := splitOwnerRepo(repo)
					if err != nil {
						deps.Logger.Warn(loopCtx, "scheduled scan skipped", "repo", repo, "error", err)
						continue
					}
					scanOne(loopCtx, comps, deps, owner, name)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func scanOne(ctx context.Context, comps *Components, deps *Dependencies, owner, name string) {
	result, err := comps.Orchestrator.Scan(ctx, orchestrator.Config{
		Owner: owner, Repo: name, ProviderName: comps.ProviderName,
		CachePath: comps.CachePath, UseCache: comps.UseCache,
	})
	if err != nil {
		deps.Logger.Error(ctx, "scan failed", err, "repo", owner+"/"+name)
		return
	}
	deps.Logger.Info(ctx, "scan complete", "repo", owner+"/"+name, "total", result.TotalPRs, "spam", result.SpamCount)
}
