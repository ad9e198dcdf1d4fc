package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"econbench.ai/internal/persistence/resultdb"
	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/policy"
	"econbench.ai/internal/sim/rideshare"
	"econbench.ai/internal/sim/run"
	"econbench.ai/internal/sim/vending"
	"econbench.ai/internal/transport/ws"
)

// envConfig covers deployment-level settings; flags override.
type envConfig struct {
	Addr       string `env:"EB_ADDR" envDefault:":8080"`
	DataDir    string `env:"EB_DATA_DIR" envDefault:"./data"`
	PolicyPath string `env:"EB_POLICY" envDefault:"./configs/policy.yaml"`
	DisableDB  bool   `env:"EB_DISABLE_DB"`
}

func main() {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		log.Fatalf("[server] env: %v", err)
	}

	var (
		addr       = flag.String("addr", ec.Addr, "http listen address")
		dataDir    = flag.String("data", ec.DataDir, "runtime data directory")
		policyPath = flag.String("policy", ec.PolicyPath, "path to policy.yaml")
		disableDB  = flag.Bool("disable_db", ec.DisableDB, "disable the sqlite result index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	pol, err := policy.Load(*policyPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("policy not found (%s); using defaults", *policyPath)
			pol = policy.Defaults()
		} else {
			logger.Fatalf("load policy: %v", err)
		}
	}
	digest, err := policyDigest(pol)
	if err != nil {
		logger.Fatalf("policy digest: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	var results *resultdb.DB
	if !*disableDB {
		results, err = resultdb.Open(filepath.Join(*dataDir, "results.db"))
		if err != nil {
			logger.Fatalf("open result db: %v", err)
		}
		defer results.Close()
	} else {
		logger.Printf("result index disabled")
	}

	factory := func(benchmark string, seed int64) (run.World, error) {
		switch benchmark {
		case "vending":
			return vending.New(vending.Config{Seed: seed, Policy: pol}), nil
		case "rideshare":
			return rideshare.New(rideshare.Config{Seed: seed, Policy: pol}), nil
		default:
			return nil, fmt.Errorf("unknown benchmark %q", benchmark)
		}
	}

	mgr := run.NewManager()
	server := ws.NewServer(factory, mgr, ws.Config{
		PolicyDigest: digest,
		LogDir:       filepath.Join(*dataDir, "runlogs"),
		SnapDir:      filepath.Join(*dataDir, "snapshots"),
		Results:      results,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", server.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		if results == nil {
			http.Error(w, "result index disabled", http.StatusServiceUnavailable)
			return
		}
		benchmark := strings.TrimSpace(r.URL.Query().Get("benchmark"))
		if benchmark == "" {
			benchmark = "vending"
		}
		rows, err := results.List(r.Context(), benchmark)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]protocol.RunResult, 0, len(rows))
		for _, row := range rows {
			out = append(out, row.Result)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		logger.Printf("shutting down: interrupting live runs")
		mgr.InterruptAll()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (policy digest %s)", *addr, digest[:12])
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// policyDigest fingerprints the effective policy so drivers can detect
// constant changes between runs.
func policyDigest(p policy.Policy) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
