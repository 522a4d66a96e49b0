package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/admin-dashboard/internal/session"
	sessionPostgres "github.com/frahmantamala/admin-dashboard/internal/session/postgres"
)

var _ = Describe("Stats Repository", func() {
	var (
		sqlDB *sql.DB
		mock  sqlmock.Sqlmock
		repo  *sessionPostgres.StatsRepository
	)

	BeforeEach(func() {
		var err error
		sqlDB, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		repo = sessionPostgres.NewStatsRepository(sqlx.NewDb(sqlDB, "pgx"))
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		_ = sqlDB.Close()
	})

	It("scans the aggregate row", func() {
		rows := sqlmock.NewRows([]string{"active_sessions", "active_users", "created_last_24h", "inactive_rows"}).
			AddRow(12, 7, 30, 4)
		mock.ExpectQuery("SELECT (.+) FROM user_sessions").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(rows)

		stats, err := repo.Stats(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(*stats).To(Equal(session.Stats{ActiveSessions: 12, ActiveUsers: 7, CreatedLast24h: 30, InactiveRows: 4}))
	})

	It("wraps query failures", func() {
		mock.ExpectQuery("SELECT (.+) FROM user_sessions").WillReturnError(errors.New("connection reset"))

		_, err := repo.Stats(context.Background())
		Expect(err).To(MatchError(ContainSubstring("query session stats")))
	})
})

var _ = Describe("Session Store persistence failures", func() {
	var (
		sqlDB *sql.DB
		mock  sqlmock.Sqlmock
		store *sessionPostgres.SessionStore
	)

	BeforeEach(func() {
		var err error
		sqlDB, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())

		db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		store = sessionPostgres.NewSessionStore(db)
	})

	AfterEach(func() {
		_ = sqlDB.Close()
	})

	It("surfaces an unreachable store as an error rather than a miss", func() {
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		token := strings.Repeat("A", 22) + "." + strings.Repeat("B", 43)
		s, err := store.FindActive(context.Background(), token)
		Expect(s).To(BeNil())
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
	})

	It("does not touch the store for a malformed token", func() {
		s, err := store.FindActive(context.Background(), "garbage")
		Expect(s).To(BeNil())
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})
})
