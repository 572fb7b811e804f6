package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	clientv3 "go.etcd.io/etcd/client/v3"

	"tonkserver/common/cache"
	"tonkserver/common/config"
	"tonkserver/common/database"
	httpx "tonkserver/common/http"
	"tonkserver/common/log"
	"tonkserver/eventbus"
	"tonkserver/ledger"
	"tonkserver/matchmaker"
	"tonkserver/metrics"
	"tonkserver/queue"
	"tonkserver/session"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "tonkserver",
	Short: "tonkserver authoritative Tonk game server",
	Long:  `tonkserver runs the matchmaker, table actors, and ledger for real-money Tonk tables.`,
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig(configFile)
		log.InitLog(config.Conf.AppName, config.Conf.Log.Level)
		log.Info("config loaded: %+v", config.Conf)

		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", config.Conf.MetricPort)
			log.Info("metrics: dashboard at http://localhost:%d/debug/statsviz/", config.Conf.MetricPort)
			if err := metrics.Serve(addr); err != nil {
				log.Error("metrics server stopped: %v", err)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := run(ctx); err != nil {
			log.Error("tonkserver exited with error: %v", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "resource/application.yml", "resource file")
	rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("error happen: %#v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	redisMgr := database.NewRedis(config.Conf.DatabaseConf.RedisConf)
	mongoMgr := database.NewMongo()
	defer mongoMgr.Close()

	waits, err := cache.NewGeneralCache(1<<20, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("building queue wait-time cache: %w", err)
	}

	var bus *eventbus.Bus
	if config.Conf.NatsConf.Url != "" {
		bus, err = eventbus.Connect(config.Conf.NatsConf.Url)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer bus.Close()
	}

	etcdClient, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Conf.EtcdConf.Addrs,
		DialTimeout: time.Duration(config.Conf.EtcdConf.DialTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connecting to etcd: %w", err)
	}
	defer etcdClient.Close()

	led := ledger.NewLedger(mongoMgr)
	queueMgr := queue.NewManager(redisMgr, waits)
	sessionMgr := session.NewManager(queueMgr, led, bus, config.Conf.JwtConf.Secret)
	mm := matchmaker.NewManager(sessionMgr, queueMgr, etcdClient, config.Conf.Game.StakeLadder)
	sessionMgr.SetMatchmaker(mm)
	sessionMgr.ProvisionTables(config.Conf.Game.StakeLadder)

	if bus != nil {
		if err := bus.SubscribeQueueActivity(mm.Trigger); err != nil {
			log.Warn("eventbus: subscribing to queue activity failed: %v", err)
		}
	}

	go mm.Run(ctx)
	go sweepLoop(ctx, queueMgr, config.Conf.Game.StakeLadder, config.Conf.Game.QueueCleanupPeriod)

	wsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Conf.WsPort),
		Handler: http.HandlerFunc(sessionMgr.HandleWebSocket),
	}
	go func() {
		log.Info("websocket: listening on %d", config.Conf.WsPort)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("websocket server stopped: %v", err)
		}
	}()

	apiServer := newApiServer(queueMgr, sessionMgr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() { errCh <- apiServer.Start() }()

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("api server stopped: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = wsServer.Shutdown(shutdownCtx)
	return nil
}

// newApiServer mounts the REST surface alongside the websocket port:
// health, queue stats, and the one mandatory HTTP surface the
// spec calls out, validate-state, for clients that don't trust their
// own desync detection over the socket.
func newApiServer(queueMgr *queue.Manager, sessionMgr *session.Manager) *httpx.HttpServer {
	srv := httpx.NewHttpServer(
		httpx.WithPort(config.Conf.HttpPort),
		httpx.WithMode(gin.ReleaseMode),
	)
	srv.Use(httpx.CorsMiddleware(config.Conf.CorsOrigins), httpx.LoggerMiddleware(), httpx.RecoveryMiddleware())

	srv.GET("/healthz", func(c *httpx.Context) error {
		c.Success(map[string]string{"status": "ok"})
		return nil
	})

	srv.GET("/queues/:stake/stats", func(c *httpx.Context) error {
		stake, err := parseStake(c.GetParam("stake"))
		if err != nil {
			c.BadRequest(err.Error())
			return nil
		}
		stats, err := queueMgr.Stats(c.Request().Context(), stake)
		if err != nil {
			c.InternalServerError(err.Error())
			return nil
		}
		c.Success(stats)
		return nil
	})

	srv.GET("/tables/:id/validate-state", func(c *httpx.Context) error {
		hash, err := strconv.ParseUint(c.GetQuery("hash"), 10, 64)
		if err != nil {
			c.BadRequest("hash query param must be a uint64")
			return nil
		}
		result, err := sessionMgr.ValidateState(c.GetParam("id"), hash)
		if err != nil {
			c.NotFound(err.Error())
			return nil
		}
		c.Success(result)
		return nil
	})

	return srv
}

func parseStake(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// sweepLoop periodically drops queue entries that have waited past the
// staleness cutoff.
func sweepLoop(ctx context.Context, q *queue.Manager, stakeLadder []int64, period time.Duration) {
	if period <= 0 {
		period = 10 * time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.SweepExpired(ctx, stakeLadder)
		}
	}
}
