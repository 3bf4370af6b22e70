package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gmart-backend/internal/domain"
)

// MongoRepo keeps products, orders and users as documents, one collection each.
type MongoRepo struct {
	client   *mongo.Client
	products *mongo.Collection
	orders   *mongo.Collection
	users    *mongo.Collection
}

func NewMongoRepo(ctx context.Context, uri, dbName string) (*MongoRepo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	r := newMongoRepo(client.Database(dbName))
	r.client = client
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return r, nil
}

func newMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		products: db.Collection("products"),
		orders:   db.Collection("orders"),
		users:    db.Collection("users"),
	}
}

func (r *MongoRepo) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

func (r *MongoRepo) ensureIndexes(ctx context.Context) error {
	if _, err := r.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "external_order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := r.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	}); err != nil {
		return err
	}
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *MongoRepo) PutProduct(ctx context.Context, p *domain.Product) error {
	_, err := r.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	return err
}

func (r *MongoRepo) GetProduct(ctx context.Context, id string) (*domain.Product, bool) {
	var p domain.Product
	if err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, false
	}
	return &p, true
}

func (r *MongoRepo) FindProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	cur, err := r.products.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var list []domain.Product
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	out := make(map[string]domain.Product, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (r *MongoRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cur, err := r.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []domain.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepo) DeleteProduct(ctx context.Context, id string) (bool, error) {
	res, err := r.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepo) PutOrder(ctx context.Context, o *domain.Order) error {
	_, err := r.orders.ReplaceOne(ctx, bson.M{"_id": o.OrderID}, o, options.Replace().SetUpsert(true))
	return err
}

func (r *MongoRepo) GetOrder(ctx context.Context, id string) (*domain.Order, bool) {
	return r.findOrder(ctx, bson.M{"_id": id})
}

func (r *MongoRepo) GetOrderByExternalID(ctx context.Context, externalID string) (*domain.Order, bool) {
	return r.findOrder(ctx, bson.M{"external_order_id": externalID})
}

func (r *MongoRepo) findOrder(ctx context.Context, filter bson.M) (*domain.Order, bool) {
	var o domain.Order
	if err := r.orders.FindOne(ctx, filter).Decode(&o); err != nil {
		return nil, false
	}
	return &o, true
}

// MarkPaid only matches pending documents so updated_at records the first
// transition; an already paid order is read back unchanged.
func (r *MongoRepo) MarkPaid(ctx context.Context, externalID string, at time.Time) (*domain.Order, error) {
	var o domain.Order
	err := r.orders.FindOneAndUpdate(ctx,
		bson.M{"external_order_id": externalID, "status": domain.OrderPending},
		bson.M{"$set": bson.M{"status": domain.OrderPaid, "updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&o)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	err = r.orders.FindOne(ctx, bson.M{"external_order_id": externalID}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *MongoRepo) ListOrders(ctx context.Context, page, pageSize int) ([]domain.Order, int) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))
	cur, err := r.orders.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0
	}
	out := make([]domain.Order, 0, pageSize)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0
	}
	total, _ := r.orders.CountDocuments(ctx, bson.M{})
	return out, int(total)
}

func (r *MongoRepo) PutUser(ctx context.Context, u *domain.User) error {
	cp := *u
	cp.Email = strings.ToLower(cp.Email)
	_, err := r.users.ReplaceOne(ctx, bson.M{"_id": cp.UserID}, &cp, options.Replace().SetUpsert(true))
	return err
}

func (r *MongoRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, bool) {
	var u domain.User
	if err := r.users.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&u); err != nil {
		return nil, false
	}
	return &u, true
}
