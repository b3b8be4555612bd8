package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Zhima-Mochi/clubshop/internal/application/cart"
	appInventory "github.com/Zhima-Mochi/clubshop/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/clubshop/internal/application/order"
	appPayment "github.com/Zhima-Mochi/clubshop/internal/application/payment"
	"github.com/Zhima-Mochi/clubshop/internal/config"
	domcustomer "github.com/Zhima-Mochi/clubshop/internal/domain/customer"
	domidem "github.com/Zhima-Mochi/clubshop/internal/domain/idempotency"
	dominv "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/clubshop/internal/domain/order"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/id"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/memory"
	mongostore "github.com/Zhima-Mochi/clubshop/internal/infrastructure/mongo"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/clubshop/internal/observability"
	httppresentation "github.com/Zhima-Mochi/clubshop/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/clubshop/internal/presentation/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// customerStore is a directory the seed command can also write to.
type customerStore interface {
	domcustomer.Directory
	Put(ctx context.Context, email string, status domcustomer.Status) error
}

type memoryCustomers struct{ *memory.CustomerDirectory }

func (m memoryCustomers) Put(_ context.Context, email string, status domcustomer.Status) error {
	m.CustomerDirectory.Put(email, status)
	return nil
}

// backend is the storage the engine runs on plus its idempotency store.
type backend struct {
	products    dominv.Repository
	orders      domorder.Repository
	customers   customerStore
	idempotency domidem.Store
	closers     []func(context.Context) error
}

func (b *backend) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	be := &backend{}

	switch cfg.Store {
	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		be.closers = append(be.closers, client.Disconnect)
		db := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = be.Close(context.Background())
			return nil, err
		}
		be.products = mongostore.NewProductRepository(db.Collection(mongostore.ProductsCollection))
		be.orders = mongostore.NewOrderRepository(db.Collection(mongostore.OrdersCollection))
		be.customers = mongostore.NewCustomerDirectory(db.Collection(mongostore.CustomersCollection))
	default:
		be.products = memory.NewInventoryRepository()
		be.orders = memory.NewOrderRepository()
		be.customers = memoryCustomers{memory.NewCustomerDirectory()}
	}

	if cfg.RedisAddr != "" {
		client, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = be.Close(context.Background())
			return nil, err
		}
		be.closers = append(be.closers, func(context.Context) error { return closeRedis(client) })
		be.idempotency = redisstore.NewIdempotencyStore(client, cfg.IdempotencyTTL)
	} else {
		be.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	}
	return be, nil
}

func closeRedis(c *redis.Client) error { return c.Close() }

type application struct {
	handler   httppresentation.Deps
	forwarder *kafka.Forwarder
}

// wire builds the use cases on top of be and subscribes the workers to bus.
func wire(cfg config.Config, be *backend, bus *outbox.Bus, obs observability.Observability) (*application, error) {
	if be == nil || bus == nil {
		return nil, fmt.Errorf("wire: backend and bus are required")
	}
	ids := id.NewUUIDGenerator()
	calc := cart.NewCalculator(be.products, obs)
	limits := appOrder.Limits{MaxLineItems: cfg.MaxLineItems, MaxOrderTotal: cfg.MaxOrderTotal}

	app := &application{
		handler: httppresentation.Deps{
			CreateOrder: appOrder.NewCreateOrderUseCase(be.orders, be.products, calc, be.customers,
				be.idempotency, ids, bus, limits, obs),
			CancelOrder: appOrder.NewCancelOrderUseCase(be.orders, be.products, bus, obs),
			MarkPaid:    appPayment.NewMarkPaidUseCase(be.orders, bus, obs),
			Orders:      appOrder.NewQueries(be.orders, obs),
			Catalog:     appInventory.NewCatalog(be.products, ids, obs),
			Cart:        calc,
		},
	}

	sub := workerpresentation.Subscriber(bus, obs.Logger(), obs)
	appInventory.NewLowStockWorker(sub, be.products, cfg.LowStockThreshold, obs).Start()

	if len(cfg.KafkaBrokers) > 0 {
		app.forwarder = kafka.NewForwarder(kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic), cfg.ServiceName, obs)
		app.forwarder.Register(sub)
	}
	return app, nil
}

func (a *application) router(obs observability.Observability) http.Handler {
	return httppresentation.NewHandler(a.handler, obs.Logger(), obs).Router()
}

func (a *application) close(logger *zap.Logger) {
	if a.forwarder == nil {
		return
	}
	if err := a.forwarder.Close(); err != nil {
		logger.Warn("kafka_writer_close_error", zap.Error(err))
	}
}
