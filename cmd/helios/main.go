// cmd/helios/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fawad-mazhar/helios/internal/api/routes"
	"github.com/fawad-mazhar/helios/internal/config"
	"github.com/fawad-mazhar/helios/internal/events"
	"github.com/fawad-mazhar/helios/internal/lifecycle"
	"github.com/fawad-mazhar/helios/internal/models"
	"github.com/fawad-mazhar/helios/internal/registry"
	"github.com/fawad-mazhar/helios/internal/runner"
	"github.com/fawad-mazhar/helios/internal/storage/leveldb"
	"github.com/fawad-mazhar/helios/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	jobs := flag.Int("jobs", 8, "number of demo simulation runs")
	simTime := flag.Float64("simtime", 50, "simulated time each demo run integrates to")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize result store
	store, err := leveldb.NewClient(cfg.LevelDB, 24*time.Hour) // 24-hour TTL
	if err != nil {
		log.Fatalf("Failed to initialize result store: %v", err)
	}
	defer store.Close()

	// Optional run archive
	var archive *postgres.Client
	if cfg.Postgres.URL != "" {
		archive, err = postgres.NewClient(cfg.Postgres)
		if err != nil {
			log.Fatalf("Failed to connect to run archive: %v", err)
		}
		defer archive.Close()

		if err := archive.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to prepare run archive schema: %v", err)
		}
	}

	// Optional status event stream
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = events.NewPublisher(cfg.NATS)
		if err != nil {
			log.Fatalf("Failed to connect to status stream: %v", err)
		}
		defer publisher.Close()
	}

	// Run registry and lifecycle controller
	reg := registry.NewRegistry()
	reg.OnTransition(func(state models.RunState) {
		if publisher != nil {
			if err := publisher.PublishTransition(state); err != nil {
				log.Printf("Warning: failed to publish transition for port %d: %v", state.Port, err)
			}
		}
		if archive != nil && state.Status.Terminal() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := archive.ArchiveRun(ctx, state); err != nil {
				log.Printf("Warning: failed to archive run on port %d: %v", state.Port, err)
			}
		}
	})

	controller := lifecycle.NewController(reg, cfg.Runner.Workers,
		time.Duration(cfg.Lifecycle.SweepInterval)*time.Second,
		time.Duration(cfg.Lifecycle.StaleAfter)*time.Second,
	)
	if publisher != nil {
		controller.OnStatus(func(status models.ControllerStatus) {
			if err := publisher.PublishController(status); err != nil {
				log.Printf("Warning: failed to publish controller status: %v", err)
			}
		})
	}
	controller.Start()

	// Status server
	router := routes.SetupRouter(cfg, reg, controller, store, archive)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Status server listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Status server stopped with error: %v", err)
		}
	}()

	// Launch the demo batch
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := runner.NewRunner(cfg.Runner, reg, store, demoSim(*simTime))
	batchDone := make(chan struct{})
	go func() {
		defer close(batchDone)

		params := make([][]float64, *jobs)
		for i := range params {
			params[i] = []float64{0.1 + 0.8*float64(i)/float64(*jobs)}
		}

		results, err := run.Run(ctx, models.NewBatch(params))
		if err != nil {
			log.Printf("Batch stopped with error: %v", err)
			return
		}

		failed := 0
		for _, result := range results {
			if result.Err != nil {
				failed++
			}
		}
		log.Printf("Batch finished: %d jobs, %d failed", len(results), failed)
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Printf("Received shutdown signal: %v", sig)
		controller.EndAll()
		cancel()
		<-batchDone
	case <-batchDone:
		log.Println("All runs finished, dashboard still serving; Ctrl-C to exit")
		<-sigChan
	}

	// Initiate shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	controller.Stop()

	log.Println("Shutdown complete")
}

// demoSim builds a stand-in simulation function: a damped oscillator
// stepped on wall-clock sleeps, so the dashboard has something to
// show without the external integrator. The eccentricity-like
// parameter only scales the step cost.
func demoSim(maxT float64) runner.SimFunc {
	return func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error) {
		scale := 1.0
		if len(params) > 0 {
			scale = params[0]
		}

		const dt = 1.0
		var t float64
		for t < maxT {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(20*scale) * time.Millisecond):
			}

			t += dt
			if !run.Checkpoint(t) {
				// ended early; return the partial state
				break
			}
			run.Publish([]byte(fmt.Sprintf(`{"t": %.2f, "param": %.3f}`, t, scale)))
		}

		return map[string]interface{}{
			"t":     t,
			"param": scale,
		}, nil
	}
}
