package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrCacheMiss возвращается, когда в кэше нет списка товаров.
var ErrCacheMiss = errors.New("catalog cache miss")

const productsKey = "catalog:products"

// RedisCache хранит список товаров в Redis.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewRedisCache создаёт кэш; ttl <= 0 заменяется на 5 минут.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, baseTTL: ttl}
}

func (r *RedisCache) Get(ctx context.Context) ([]domain.Product, error) {
	data, err := r.client.Get(ctx, productsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("unmarshal products failed: %w", err)
	}
	return products, nil
}

func (r *RedisCache) Set(ctx context.Context, products []domain.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("marshal products failed: %w", err)
	}

	jitter := time.Duration(rand.Int63n(int64(r.baseTTL)/5 + 1))
	if err := r.client.Set(ctx, productsKey, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, productsKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// CachedSource ставит кэш перед ListProducts источника каталога.
// Запись из админки сбрасывает кэш.
type CachedSource struct {
	source domain.CatalogSource
	cache  *RedisCache
	sfg    singleflight.Group
	logger *log.Entry
}

// NewCachedSource оборачивает источник кэшем.
func NewCachedSource(source domain.CatalogSource, cache *RedisCache, logger *log.Entry) *CachedSource {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-cache")
	}
	return &CachedSource{source: source, cache: cache, logger: logger}
}

func (c *CachedSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	v, err, _ := c.sfg.Do(productsKey, func() (interface{}, error) {
		products, err := c.cache.Get(ctx)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.WithError(err).Warn("catalog cache get failed")
		}

		products, err = c.source.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, products); err != nil {
			c.logger.WithError(err).Warn("catalog cache set failed")
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}

	products := v.([]domain.Product)
	return append([]domain.Product(nil), products...), nil
}

func (c *CachedSource) repository() (domain.CatalogRepository, error) {
	repo, ok := c.source.(domain.CatalogRepository)
	if !ok {
		return nil, domain.ErrCatalogReadOnly
	}
	return repo, nil
}

func (c *CachedSource) invalidate(ctx context.Context) {
	if err := c.cache.Invalidate(ctx); err != nil {
		c.logger.WithError(err).Warn("catalog cache invalidate failed")
	}
}

func (c *CachedSource) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	repo, err := c.repository()
	if err != nil {
		return domain.Product{}, err
	}
	created, err := repo.CreateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	c.invalidate(ctx)
	return created, nil
}

func (c *CachedSource) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	repo, err := c.repository()
	if err != nil {
		return domain.Product{}, err
	}
	updated, err := repo.UpdateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	c.invalidate(ctx)
	return updated, nil
}

func (c *CachedSource) DeleteProduct(ctx context.Context, id string) error {
	repo, err := c.repository()
	if err != nil {
		return err
	}
	if err := repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

var _ domain.CatalogRepository = (*CachedSource)(nil)
