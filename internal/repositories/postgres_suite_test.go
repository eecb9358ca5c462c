package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"messenger-service/internal/db"
	"messenger-service/internal/models"
)

// PostgresTestSuite runs against the database in DB_DSN and is skipped without one.
type PostgresTestSuite struct {
	suite.Suite
	db  *sqlx.DB
	ctx context.Context
	now time.Time
}

func (s *PostgresTestSuite) SetupSuite() {
	viper.AutomaticEnv()
	dsn := viper.GetString("DB_DSN")
	if dsn == "" {
		s.T().Skip("DB_DSN not set")
	}

	logger, _ := test.NewNullLogger()
	var err error
	s.db, err = db.Connect(dsn, logger)
	require.NoError(s.T(), err, "failed to connect to database")
}

func (s *PostgresTestSuite) SetupTest() {
	require.NoError(s.T(), db.Reset(s.db), "failed to reset database")
	s.ctx = context.Background()
	s.now = time.Date(2024, 3, 19, 10, 0, 0, 0, time.UTC)
}

func (s *PostgresTestSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *PostgresTestSuite) createUser(name string) models.User {
	user, err := NewUserRepo(s.db).CreateUser(s.ctx, models.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		CreatedAt:    s.now,
	})
	require.NoError(s.T(), err)
	return user
}

func (s *PostgresTestSuite) countRows(query string, args ...any) int {
	var n int
	require.NoError(s.T(), s.db.Get(&n, query, args...))
	return n
}
