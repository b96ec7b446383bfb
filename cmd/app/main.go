package main

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	jwtware "github.com/gofiber/jwt/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/khayson/barffoods-backend/internal/config"
	"github.com/khayson/barffoods-backend/internal/idempotency"
	"github.com/khayson/barffoods-backend/internal/inventory"
	"github.com/khayson/barffoods-backend/internal/logging"
	"github.com/khayson/barffoods-backend/internal/messaging"
	"github.com/khayson/barffoods-backend/internal/messaging/kafka"
	"github.com/khayson/barffoods-backend/internal/notify"
	"github.com/khayson/barffoods-backend/internal/order"
	"github.com/khayson/barffoods-backend/internal/payment"
	"github.com/khayson/barffoods-backend/internal/settings"
	"github.com/khayson/barffoods-backend/internal/status"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.Init("barffoods", cfg.LogFile)

	db := mustOpenDB(cfg.DatabaseURL)
	defer db.Close()
	bootstrapSchema(db)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	var publisher messaging.Publisher = &messaging.LogPublisher{Log: logging.New("events")}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewKafkaBroker(cfg.KafkaBrokers)
	}

	settingsService := settings.NewService(settings.NewPostgresRepository(db), rdb, logging.New("settings"))
	seedSettings(db)

	ledger := inventory.NewLedger(db, logging.New("inventory"))
	orderRepo := order.NewPostgresRepository(db)

	var idemStore idempotency.Store
	if rdb != nil {
		idemStore = idempotency.NewRedisStore(rdb, 24*time.Hour)
	}

	notifier := notify.NewEventDispatcher(publisher, "notifications", logging.New("notify"))
	gateway := &payment.LogGateway{Log: logging.New("payments")}

	orderService := order.NewService(order.ServiceDeps{
		DB:          db,
		Repo:        orderRepo,
		Ledger:      ledger,
		Pricing:     settingsService,
		Idempotency: idemStore,
		Payments:    gateway,
		Notifier:    notifier,
		Events:      publisher,
		Log:         logging.New("orders"),
	})
	orderHandler := order.NewHandler(orderService, ledger)

	statusService := status.NewService(db, orderRepo, publisher, notifier, logging.New("status"))
	statusHandler := status.NewHandler(statusService)

	app := fiber.New()
	setupCORS(app)
	app.Use(jwtware.New(jwtware.Config{SigningKey: []byte(cfg.JWTSecret)}))

	orderHandler.RegisterProtectedRoutes(app)
	statusHandler.RegisterProtectedRoutes(app)
	settings.NewHandler(settingsService).RegisterProtectedRoutes(app)

	log.Info("listening", "addr", cfg.Addr)
	if err := app.Listen(cfg.Addr); err != nil {
		log.Error("server stopped", "err", err)
	}
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))
}

func mustOpenDB(dbURL string) *sql.DB {
	if dbURL == "" {
		panic("DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		panic(err)
	}

	if err := db.Ping(); err != nil {
		panic(err)
	}

	return db
}

// bootstrapSchema creates the fulfillment tables and the unique indexes the
// idempotency and order-code guarantees rest on.
func bootstrapSchema(db *sql.DB) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			product_id SERIAL PRIMARY KEY,
			product_name TEXT NOT NULL,
			product_price NUMERIC NOT NULL DEFAULT 0,
			stock_quantity INT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`ALTER TABLE products ADD COLUMN IF NOT EXISTS stock_quantity INT NOT NULL DEFAULT 0,
			ADD COLUMN IF NOT EXISTS active BOOLEAN NOT NULL DEFAULT TRUE`,
		`CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			code TEXT NOT NULL,
			user_id INT NOT NULL,
			address_id INT NOT NULL,
			slot_id INT,
			subtotal NUMERIC NOT NULL DEFAULT 0,
			discount NUMERIC NOT NULL DEFAULT 0,
			tax NUMERIC NOT NULL DEFAULT 0,
			shipping_cost NUMERIC NOT NULL DEFAULT 0,
			total NUMERIC NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			payment_method TEXT,
			payment_capture_ref TEXT,
			notes TEXT,
			idempotency_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS orders_code_key ON orders (code)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS orders_idempotency_key_key ON orders (idempotency_key)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id INT NOT NULL REFERENCES orders(id),
			product_id INT NOT NULL,
			store_id INT NOT NULL DEFAULT 0,
			quantity INT NOT NULL,
			unit_price NUMERIC NOT NULL,
			total_price NUMERIC NOT NULL,
			status TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS order_status_history (
			id SERIAL PRIMARY KEY,
			order_id INT NOT NULL REFERENCES orders(id),
			status TEXT NOT NULL,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS stock_audits (
			id SERIAL PRIMARY KEY,
			product_id INT NOT NULL,
			delta INT NOT NULL,
			before_qty INT NOT NULL,
			after_qty INT NOT NULL,
			actor TEXT,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			panic(err)
		}
	}
}

// seedSettings installs default pricing configuration on first boot so a
// fresh environment prices carts sensibly.
func seedSettings(db *sql.DB) {
	seed := map[string]string{
		settings.KeyGlobalDeliveryFee: "4.99",
		settings.KeyGlobalTaxRate:     "7",
		settings.KeyDiscountRules: `{
			"first_time_customer": {"enabled": true, "percentage": 10, "description": "First order discount"},
			"bulk_order": {"enabled": true, "percentage": 5, "threshold": 100, "description": "5% off orders over 100"}
		}`,
	}
	for key, value := range seed {
		if _, err := db.Exec(
			`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
			key, value,
		); err != nil {
			panic(err)
		}
	}
}
