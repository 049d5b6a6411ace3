package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		collection: db.Collection("orders"),
	}
}

// EnsureIndexes creates the unique orderId and gatewayOrderId indexes.
func (r *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "gatewayOrderId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (r *MongoOrderRepository) Create(ctx context.Context, o *models.Order) error {
	if err := validateOrder(o); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MongoOrderRepository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"orderId": orderID})
}

func (r *MongoOrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"gatewayOrderId": gatewayOrderID})
}

func (r *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var o models.Order
	if err := r.collection.FindOne(ctx, filter).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *MongoOrderRepository) FindAll(ctx context.Context, filter OrderFilter, page, limit int) ([]models.Order, int64, error) {
	page, limit = normalizePage(page, limit)

	q := bson.M{}
	if filter.UserID != "" {
		q["userId"] = filter.UserID
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.PaymentStatus != "" {
		q["paymentStatus"] = filter.PaymentStatus
	}

	total, err := r.collection.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *MongoOrderRepository) MarkPaymentSucceeded(ctx context.Context, gatewayOrderID, paymentID string, signature *string) (bool, error) {
	filter := bson.M{
		"gatewayOrderId": gatewayOrderID,
		"status":         models.StatusPending,
		"paymentStatus":  bson.M{"$in": models.PayableStatuses},
	}
	update := bson.M{"$set": bson.M{
		"paymentStatus":    models.PaymentSuccessful,
		"status":           models.StatusProcessing,
		"gatewayPaymentId": paymentID,
		"gatewaySignature": signature,
		"stockAdjusted":    true,
		"updatedAt":        time.Now().UTC(),
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoOrderRepository) MarkPaymentFailed(ctx context.Context, gatewayOrderID, paymentID string, signature *string) (bool, error) {
	filter := bson.M{
		"gatewayOrderId": gatewayOrderID,
		"paymentStatus":  bson.M{"$in": models.PayableStatuses},
	}
	update := bson.M{"$set": bson.M{
		"paymentStatus":    models.PaymentFailed,
		"gatewayPaymentId": paymentID,
		"gatewaySignature": signature,
		"updatedAt":        time.Now().UTC(),
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoOrderRepository) SetStockAdjusted(ctx context.Context, orderID int64, value bool) (bool, error) {
	filter := bson.M{"orderId": orderID, "stockAdjusted": !value}
	if value {
		filter["paymentStatus"] = models.PaymentSuccessful
	}
	update := bson.M{"$set": bson.M{"stockAdjusted": value, "updatedAt": time.Now().UTC()}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// Cancel uses a pipeline update so the refund flip and the terminal-status
// guard happen in the same document write.
func (r *MongoOrderRepository) Cancel(ctx context.Context, orderID int64) (*models.Order, error) {
	filter := bson.M{
		"orderId": orderID,
		"status":  bson.M{"$nin": models.CancelTerminalStatuses},
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "status", Value: models.StatusCancelled},
			{Key: "paymentStatus", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$paymentStatus", models.PaymentSuccessful}}},
				models.PaymentRefunded,
				"$paymentStatus",
			}}}},
			{Key: "stockAdjusted", Value: false},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before models.Order
	err := r.collection.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&before)
	if err == nil {
		return &before, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"orderId": orderID})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrNotCancellable
}

func (r *MongoOrderRepository) UpdateStatus(ctx context.Context, orderID int64, update StatusUpdate) (*models.Order, error) {
	if err := validateStatusUpdate(update); err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.PaymentStatus != nil {
		set["paymentStatus"] = *update.PaymentStatus
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var o models.Order
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"orderId": orderID}, bson.M{"$set": set}, opts).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Delete is a hard delete.
func (r *MongoOrderRepository) Delete(ctx context.Context, orderID int64) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"orderId": orderID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
