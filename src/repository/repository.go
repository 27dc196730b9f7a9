// Package repository implements the entity repository (spec §4.2): durable
// storage for assets, events and bundles, redaction-on-read, the paged
// event query engine and the begin/end bundle state machine.
package repository

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/meshledger/ledger-node/src/entity"
	"github.com/meshledger/ledger-node/src/utils/config"
	"github.com/meshledger/ledger-node/src/utils/logger"
)

// Repository owns the three logical collections named in spec §4.2:
// assets, events, bundles. Records are persisted verbatim.
type Repository struct {
	assets  *mongo.Collection
	events  *mongo.Collection
	bundles *mongo.Collection
	log     *logrus.Entry
}

// Connect dials the configured Mongo URI and returns a Repository bound to
// cfg.Database.
func Connect(ctx context.Context, cfg *config.Mongo) (*Repository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	return New(db), nil
}

// New wraps an already-established database handle, primarily for tests
// against mtest's in-memory driver mock.
func New(db *mongo.Database) *Repository {
	return &Repository{
		assets:  db.Collection("assets"),
		events:  db.Collection("events"),
		bundles: db.Collection("bundles"),
		log:     logger.NewSublogger("repository"),
	}
}

// StoreAsset inserts a per spec §4.2's storeAsset.
func (r *Repository) StoreAsset(ctx context.Context, a *entity.Asset) error {
	_, err := r.assets.InsertOne(ctx, a)
	if err != nil {
		return fmt.Errorf("store asset %s: %w", a.AssetId, err)
	}
	return nil
}

// GetAsset returns the stored asset verbatim, or nil if absent.
func (r *Repository) GetAsset(ctx context.Context, id string) (*entity.Asset, error) {
	var a entity.Asset
	err := r.assets.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	return &a, nil
}

// StoreEvent inserts e per spec §4.2's storeEvent.
func (r *Repository) StoreEvent(ctx context.Context, e *entity.Event) error {
	_, err := r.events.InsertOne(ctx, e)
	if err != nil {
		return fmt.Errorf("store event %s: %w", e.EventId, err)
	}
	return nil
}

// GetEvent returns the event redacted for accessLevel, or nil if absent.
func (r *Repository) GetEvent(ctx context.Context, id string, accessLevel int) (*entity.Event, error) {
	var e entity.Event
	err := r.events.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return entity.RedactEvent(&e, accessLevel), nil
}

// FindEventsResult is the {results, resultCount} pair spec §4.2's
// findEvents returns.
type FindEventsResult struct {
	Results     []*entity.Event
	ResultCount int64
}

// FindEvents composes the fixed conjunct order documented in spec §4.2 and
// applies per-result redaction.
func (r *Repository) FindEvents(ctx context.Context, params *entity.FindEventsParams, accessLevel int) (*FindEventsResult, error) {
	filter := buildEventFilter(params, accessLevel)

	total, err := r.events.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	page := params.Page
	perPage := params.PerPage
	if perPage == 0 {
		perPage = 100
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "content.idData.timestamp", Value: -1}}).
		SetSkip(int64(page) * int64(perPage)).
		SetLimit(int64(perPage))

	cursor, err := r.events.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*entity.Event
	for cursor.Next(ctx) {
		var e entity.Event
		if err := cursor.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		results = append(results, entity.RedactEvent(&e, accessLevel))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return &FindEventsResult{Results: results, ResultCount: total}, nil
}

// buildEventFilter follows the fixed conjunct order of spec §4.2 exactly,
// so the composed query shape stays stable for golden tests.
func buildEventFilter(params *entity.FindEventsParams, accessLevel int) bson.M {
	var and []bson.M

	// 1. accessLevel <= requesterAccessLevel, always present.
	and = append(and, bson.M{"content.idData.accessLevel": bson.M{"$lte": accessLevel}})

	// 2. scalar params.data predicates, elemMatch over content.data.
	if params.Data != nil {
		for k, v := range params.Data {
			and = append(and, bson.M{"content.data": bson.M{"$elemMatch": bson.M{k: v}}})
		}
	}

	// 3. geoJson near predicate.
	if params.GeoJSON != nil {
		and = append(and, bson.M{
			"content.data.geoJson": bson.M{
				"$near": bson.M{
					"$geometry":    bson.M{"type": "Point", "coordinates": []float64{params.GeoJSON.LocationLongitude, params.GeoJSON.LocationLatitude}},
					"$maxDistance": params.GeoJSON.LocationMaxDistance,
				},
			},
		})
	}

	// 4. assetId, createdBy, fromTimestamp, toTimestamp in that order.
	if params.AssetId != "" {
		and = append(and, bson.M{"content.idData.assetId": params.AssetId})
	}
	if params.CreatedBy != "" {
		and = append(and, bson.M{"content.idData.createdBy": params.CreatedBy})
	}
	if params.FromTimestamp != nil {
		and = append(and, bson.M{"content.idData.timestamp": bson.M{"$gte": *params.FromTimestamp}})
	}
	if params.ToTimestamp != nil {
		and = append(and, bson.M{"content.idData.timestamp": bson.M{"$lte": *params.ToTimestamp}})
	}

	return bson.M{"$and": and}
}

// StoreBundle inserts b per spec §4.2's storeBundle.
func (r *Repository) StoreBundle(ctx context.Context, b *entity.Bundle) error {
	_, err := r.bundles.InsertOne(ctx, b)
	if err != nil {
		return fmt.Errorf("store bundle %s: %w", b.BundleId, err)
	}
	return nil
}

// GetBundle returns the bundle with its proof metadata folded into
// metadata, or nil if absent.
func (r *Repository) GetBundle(ctx context.Context, id string) (*entity.Bundle, error) {
	var b entity.Bundle
	err := r.bundles.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bundle %s: %w", id, err)
	}
	return &b, nil
}

// BeginBundleResult is the {assets, events} pair spec §4.2's beginBundle
// returns.
type BeginBundleResult struct {
	Assets []*entity.Asset
	Events []*entity.Event
}

// BeginBundle atomically claims every currently-free entity under stubId.
// It is implemented as a filtered update-many (set bundleId where
// currently null) followed by a read-back of bundleId == stubId, per spec
// §9's "atomic set-claim" design note — never read-then-write.
func (r *Repository) BeginBundle(ctx context.Context, stubId string) (*BeginBundleResult, error) {
	freeFilter := bson.M{"metadata.bundleId": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"metadata.bundleId": stubId}}

	if _, err := r.assets.UpdateMany(ctx, freeFilter, update); err != nil {
		return nil, fmt.Errorf("claim free assets: %w", err)
	}
	if _, err := r.events.UpdateMany(ctx, freeFilter, update); err != nil {
		return nil, fmt.Errorf("claim free events: %w", err)
	}

	claimedFilter := bson.M{"metadata.bundleId": stubId}

	assetCursor, err := r.assets.Find(ctx, claimedFilter)
	if err != nil {
		return nil, fmt.Errorf("read claimed assets: %w", err)
	}
	defer assetCursor.Close(ctx)
	var assets []*entity.Asset
	for assetCursor.Next(ctx) {
		var a entity.Asset
		if err := assetCursor.Decode(&a); err != nil {
			return nil, fmt.Errorf("decode claimed asset: %w", err)
		}
		assets = append(assets, &a)
	}

	eventCursor, err := r.events.Find(ctx, claimedFilter)
	if err != nil {
		return nil, fmt.Errorf("read claimed events: %w", err)
	}
	defer eventCursor.Close(ctx)
	var events []*entity.Event
	for eventCursor.Next(ctx) {
		var e entity.Event
		if err := eventCursor.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode claimed event: %w", err)
		}
		events = append(events, &e)
	}

	return &BeginBundleResult{Assets: assets, Events: events}, nil
}

// EndBundle renames stubId to bundleId across every claimed entity.
// Idempotent with respect to (stubId, bundleId): a repeat call matches no
// documents and is a no-op.
func (r *Repository) EndBundle(ctx context.Context, stubId string, bundleId string) error {
	filter := bson.M{"metadata.bundleId": stubId}
	update := bson.M{"$set": bson.M{"metadata.bundleId": bundleId}}

	if _, err := r.assets.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("rename claimed assets: %w", err)
	}
	if _, err := r.events.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("rename claimed events: %w", err)
	}
	return nil
}

// FindUnprovenBundles returns every bundle missing proof metadata: a
// COMMITTED bundle that crashed between endBundle and
// storeBundleProofMetadata (spec §7's crash-recovery design). Used by the
// Upload worker's retry sweep (spec §4.3.1 step 3).
func (r *Repository) FindUnprovenBundles(ctx context.Context) ([]*entity.Bundle, error) {
	filter := bson.M{"metadata.bundleTransactionHash": bson.M{"$exists": false}}

	cursor, err := r.bundles.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find unproven bundles: %w", err)
	}
	defer cursor.Close(ctx)

	var bundles []*entity.Bundle
	for cursor.Next(ctx) {
		var b entity.Bundle
		if err := cursor.Decode(&b); err != nil {
			return nil, fmt.Errorf("decode unproven bundle: %w", err)
		}
		bundles = append(bundles, &b)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate unproven bundles: %w", err)
	}

	return bundles, nil
}

// ReleaseExcessClaim unsets metadata.bundleId on every asset/event claimed
// under stubId whose id isn't in keepAssetIds/keepEventIds, returning them
// to the free pool so a future beginBundle can reclaim them. Used when a
// bundle-in-progress is truncated to an items-count limit after
// beginBundle has already claimed every free entity (spec §4.3.1 step 5).
func (r *Repository) ReleaseExcessClaim(ctx context.Context, stubId string, keepAssetIds []string, keepEventIds []string) error {
	if keepAssetIds == nil {
		keepAssetIds = []string{}
	}
	if keepEventIds == nil {
		keepEventIds = []string{}
	}

	unset := bson.M{"$unset": bson.M{"metadata.bundleId": ""}}

	assetFilter := bson.M{"metadata.bundleId": stubId, "_id": bson.M{"$nin": keepAssetIds}}
	if _, err := r.assets.UpdateMany(ctx, assetFilter, unset); err != nil {
		return fmt.Errorf("release excess claimed assets: %w", err)
	}

	eventFilter := bson.M{"metadata.bundleId": stubId, "_id": bson.M{"$nin": keepEventIds}}
	if _, err := r.events.UpdateMany(ctx, eventFilter, unset); err != nil {
		return fmt.Errorf("release excess claimed events: %w", err)
	}
	return nil
}

// StoreBundleProofMetadata persists the bundle's proof metadata and
// propagates bundleTransactionHash to every member entity.
func (r *Repository) StoreBundleProofMetadata(ctx context.Context, bundleId string, proofBlock int64, txHash string) error {
	bundleUpdate := bson.M{"$set": bson.M{
		"metadata.proofBlock":            proofBlock,
		"metadata.bundleTransactionHash": txHash,
	}}
	if _, err := r.bundles.UpdateOne(ctx, bson.M{"_id": bundleId}, bundleUpdate); err != nil {
		return fmt.Errorf("store bundle proof metadata %s: %w", bundleId, err)
	}

	entityFilter := bson.M{"metadata.bundleId": bundleId}
	entityUpdate := bson.M{"$set": bson.M{"metadata.bundleTransactionHash": txHash}}

	if _, err := r.assets.UpdateMany(ctx, entityFilter, entityUpdate); err != nil {
		return fmt.Errorf("propagate proof to assets: %w", err)
	}
	if _, err := r.events.UpdateMany(ctx, entityFilter, entityUpdate); err != nil {
		return fmt.Errorf("propagate proof to events: %w", err)
	}
	return nil
}
