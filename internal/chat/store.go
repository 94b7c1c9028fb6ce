package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Message сообщение общего чата поддержки.
// Коллекция append-only: сообщения никогда не изменяются и не удаляются.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderEmail string             `bson:"sender_email" json:"senderEmail"`
	SenderRole  string             `bson:"sender_role" json:"senderRole"`
	Text        string             `bson:"message_text" json:"text"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

// Config содержит конфигурацию для подключения к MongoDB
type Config struct {
	URI         string
	Database    string
	Collection  string
	Timeout     time.Duration
	MaxPoolSize uint64
	MinPoolSize uint64
}

// Store хранилище сообщений чата на MongoDB
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *logrus.Logger
}

// New создает новое подключение к MongoDB
func New(cfg *Config, logger *logrus.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	// Настройка опций клиента
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetServerSelectionTimeout(cfg.Timeout)

	// Подключение к MongoDB
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Проверка подключения
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Infof("Successfully connected to MongoDB: %s", cfg.URI)

	collection := client.Database(cfg.Database).Collection(cfg.Collection)

	store := &Store{
		client:     client,
		collection: collection,
		logger:     logger,
	}

	// Создание индексов
	if err := store.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return store, nil
}

// createIndexes создает необходимые индексы
func (s *Store) createIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: map[string]interface{}{
				"created_at": -1,
			},
		},
		{
			Keys: map[string]interface{}{
				"sender_email": 1,
			},
		},
	}

	indexNames, err := s.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	s.logger.Infof("Created %d indexes: %v", len(indexNames), indexNames)
	return nil
}

// Insert добавляет сообщение в чат
func (s *Store) Insert(ctx context.Context, msg *Message) error {
	msg.CreatedAt = time.Now()

	result, err := s.collection.InsertOne(ctx, msg)
	if err != nil {
		s.logger.Errorf("Failed to insert chat message: %v", err)
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}

	s.logger.Debugf("Chat message saved: sender=%s", msg.SenderEmail)
	return nil
}

// ListRecent возвращает последние сообщения чата в хронологическом порядке
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		s.logger.Errorf("Failed to query chat messages: %v", err)
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		s.logger.Errorf("Failed to decode chat messages: %v", err)
		return nil, fmt.Errorf("failed to decode chat messages: %w", err)
	}

	// Разворачиваем в хронологический порядок
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// CountSince возвращает число сообщений после указанного момента, не считая
// сообщений самого пользователя. Используется фоновым процессом для бейджа
// непрочитанных.
func (s *Store) CountSince(ctx context.Context, since time.Time, excludeEmail string) (int64, error) {
	filter := bson.M{
		"created_at":   bson.M{"$gt": since},
		"sender_email": bson.M{"$ne": excludeEmail},
	}

	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		s.logger.Errorf("Failed to count unread messages: %v", err)
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}

	return count, nil
}

// Ping проверяет соединение с базой данных
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close закрывает соединение с базой данных
func (s *Store) Close(ctx context.Context) error {
	if s.client != nil {
		s.logger.Info("Closing MongoDB connection")
		return s.client.Disconnect(ctx)
	}
	return nil
}
