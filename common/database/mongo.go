package database

import (
	"context"
	"time"

	"tonkserver/common/config"
	"tonkserver/common/log"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoManager struct {
	Cli *mongo.Client
	Db  *mongo.Database
}

func NewMongo() *MongoManager {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoConf := config.Conf.DatabaseConf.MongoConf
	clientOptions := options.Client().ApplyURI(mongoConf.Url)
	clientOptions.SetMinPoolSize(uint64(mongoConf.MinPoolSize))
	clientOptions.SetMaxPoolSize(uint64(mongoConf.MaxPoolSize))

	if mongoConf.Username != "" && mongoConf.Password != "" {
		clientOptions.SetAuth(options.Credential{
			Username: mongoConf.Username,
			Password: mongoConf.Password,
		})
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Fatal("mongo connect error: %v", err)
		return nil
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal("mongo ping error: %v", err)
		return nil
	}
	m := &MongoManager{
		Cli: client,
	}
	m.Db = m.Cli.Database(config.Conf.DatabaseConf.MongoConf.Db)

	return m
}

func (m *MongoManager) Close() error {
	if m == nil {
		return nil
	}
	return m.Cli.Disconnect(context.TODO())
}

// WithTransaction runs fn inside a Mongo session and commits iff fn
// returns a nil error, retrying transient transaction errors per the
// driver's default retry policy. Ledger operations that touch more
// than one document (stake deduction + payout + transaction record)
// go through this so a crash mid-write can never leave the books
// half-applied.
func (m *MongoManager) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	session, err := m.Cli.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	return session.WithTransaction(ctx, fn)
}
