package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{
		collection: db.Collection("products"),
	}
}

// EnsureIndexes creates the unique productId index.
func (r *MongoProductRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "productId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	})
	return err
}

func (r *MongoProductRepository) Create(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	if _, err := r.collection.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MongoProductRepository) FindByID(ctx context.Context, productID int64) (*models.Product, error) {
	filter := bson.M{"productId": productID, "deletedAt": bson.M{"$exists": false}}
	var p models.Product
	if err := r.collection.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoProductRepository) FindAll(ctx context.Context, filter ProductFilter, page, limit int) ([]models.Product, int64, error) {
	page, limit = normalizePage(page, limit)

	q := bson.M{"deletedAt": bson.M{"$exists": false}}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	if filter.Subcategory != "" {
		q["subcategory"] = filter.Subcategory
	}
	if filter.Brand != "" {
		q["brand"] = filter.Brand
	}
	if filter.Organic != nil {
		q["organic"] = *filter.Organic
	}
	if filter.InStock != nil {
		if *filter.InStock {
			q["stock"] = bson.M{"$gt": 0}
		} else {
			q["stock"] = 0
		}
	}
	if filter.Search != "" {
		q["name"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}

	total, err := r.collection.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "productId", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *MongoProductRepository) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now().UTC()
	filter := bson.M{"productId": p.ProductID, "deletedAt": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{
		"name":            p.Name,
		"description":     p.Description,
		"category":        p.Category,
		"subcategory":     p.Subcategory,
		"brand":           p.Brand,
		"basePrice":       p.BasePrice,
		"sellingPrice":    p.SellingPrice,
		"discountPercent": p.DiscountPercent,
		"packSizes":       p.PackSizes,
		"organic":         p.Organic,
		"rating":          p.Rating,
		"updatedAt":       p.UpdatedAt,
	}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoProductRepository) SetStock(ctx context.Context, productID int64, stock int) error {
	filter := bson.M{"productId": productID, "deletedAt": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"stock": stock, "updatedAt": time.Now().UTC()}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete performs a soft delete.
func (r *MongoProductRepository) Delete(ctx context.Context, productID int64) error {
	filter := bson.M{"productId": productID, "deletedAt": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"deletedAt": time.Now().UTC()}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock applies $inc only when stock >= quantity.
func (r *MongoProductRepository) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	filter := bson.M{"productId": productID, "stock": bson.M{"$gte": quantity}}
	update := bson.M{
		"$inc": bson.M{"stock": -quantity},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"productId": productID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

func (r *MongoProductRepository) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	update := bson.M{
		"$inc": bson.M{"stock": quantity},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"productId": productID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoProductRepository) SetImage(ctx context.Context, productID int64, key, contentType string) error {
	filter := bson.M{"productId": productID, "deletedAt": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"imageKey": key, "imageContentType": contentType, "updatedAt": time.Now().UTC()}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
