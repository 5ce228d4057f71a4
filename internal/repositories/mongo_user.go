package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection = "users"
	connectTimeout  = 10 * time.Second
)

// MongoUserStore keeps users in the users collection of a MongoDB database.
type MongoUserStore struct {
	client *mongo.Client
	users  *mongo.Collection
	logger *log.Logger
}

// NewMongoUserStore connects to uri, verifies the connection and ensures the unique username index.
func NewMongoUserStore(ctx context.Context, uri, database string, logger *log.Logger) (*MongoUserStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: mongo uri", shared.ErrMissingConfig)
	}
	if database == "" {
		return nil, fmt.Errorf("%w: mongo database", shared.ErrMissingConfig)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "store", "mongo")

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoUserStore{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
		logger: logger,
	}

	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	}
	if _, err := store.users.Indexes().CreateOne(ctx, index); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create username index: %w", err)
	}

	logger.Info("connected", "database", database, "collection", usersCollection)
	return store, nil
}

// Create inserts user; a duplicate key on username yields [shared.ErrUserExists].
func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = shared.GenerateID()
	}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", shared.ErrUserExists, user.Username)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByUsername finds a user by exact username.
func (s *MongoUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.RegisterTime = user.RegisterTime.UTC()
	if user.LastLoginTime != nil {
		t := user.LastLoginTime.UTC()
		user.LastLoginTime = &t
	}
	return &user, nil
}

// UpdateLastLogin sets lastLoginTime for username.
func (s *MongoUserStore) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	return s.set(ctx, username, bson.M{"lastLoginTime": at})
}

// SetVIP sets isVIP for username.
func (s *MongoUserStore) SetVIP(ctx context.Context, username string, vip bool) error {
	return s.set(ctx, username, bson.M{"isVIP": vip})
}

func (s *MongoUserStore) set(ctx context.Context, username string, fields bson.M) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"username": username}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, username)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoUserStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	s.logger.Debug("disconnected")
	return nil
}
