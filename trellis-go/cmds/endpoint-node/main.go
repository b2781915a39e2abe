package main

import (
	"context"
	_ "expvar"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/trellis-ml/trellis/trellis-go/serve"
	"github.com/trellis-ml/trellis/trellis-golib/envutil"
	"github.com/trellis-ml/trellis/trellis-golib/logf"
)

func init() {
	logf.SetDefault()
}

func main() {
	var (
		port      string
		debugPort string
		artifacts string
		cacheSize int
		workers   int
	)

	flag.StringVar(&port, "port", envutil.GetenvDefault("TRELLIS_PORT", ":8090"), "port to listen on (e.g :8090)")
	flag.StringVar(&debugPort, "debug-port", envutil.GetenvDefault("TRELLIS_DEBUG_PORT", ":8091"), "port for expvar and pprof")
	flag.StringVar(&artifacts, "artifacts", envutil.GetenvDefault("TRELLIS_ARTIFACTS", "/var/trellis/artifacts"), "artifact store root (local dir or s3 prefix)")
	flag.IntVar(&cacheSize, "cache", envutil.GetenvDefaultInt("TRELLIS_CACHE_SIZE", 0), "max resident artifacts, 0 for the default")
	flag.IntVar(&workers, "train-workers", envutil.GetenvDefaultInt("TRELLIS_TRAIN_WORKERS", 1), "concurrent training jobs")
	flag.Parse()

	debugRouter := mux.NewRouter()
	go func() {
		// Profiling and expvar on a separate port, available before and
		// after the main listener. The default mux is where expvar and
		// net/http/pprof register themselves.
		debugRouter.PathPrefix("/debug/").Handler(http.DefaultServeMux)
		debugRouter.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("pong"))
		})
		log.Fatal(http.ListenAndServe(debugPort, debugRouter))
	}()

	srv, err := serve.NewServer(serve.Options{
		ArtifactRoot: artifacts,
		CacheSize:    cacheSize,
		TrainWorkers: workers,
	})
	if err != nil {
		log.Fatalln("error building server:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Printf("received %v, shutting down", sig)
		cancel()
	}()

	if err := srv.Run(ctx, port); err != nil && err != http.ErrServerClosed {
		log.Fatalln("server exited:", err)
	}
}
