package repository

import (
	"bnm_edu_backend/internal/model"
	"bnm_edu_backend/internal/util"
	"bnm_edu_backend/pkg/database"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func newAccount(username, email string) *model.Account {
	return &model.Account{
		Username: username,
		Email:    email,
		Password: "hashed",
		Role:     model.RoleUser,
	}
}

func TestCreateAndFind(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	account := newAccount("alice", "alice@example.com")
	require.NoError(t, repo.Create(account))
	require.NotZero(t, account.ID)

	byID, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := repo.FindByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byName.ID)

	byEmail, err := repo.FindByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byEmail.ID)
}

func TestCreateRejectsDuplicates(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	require.NoError(t, repo.Create(newAccount("alice", "alice@example.com")))

	// 用户名相同
	err := repo.Create(newAccount("alice", "other@example.com"))
	assert.ErrorIs(t, err, util.ErrUserExists)

	// 邮箱相同
	err = repo.Create(newAccount("bob", "alice@example.com"))
	assert.ErrorIs(t, err, util.ErrUserExists)
}

func TestFindMissingAccount(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	_, err := repo.FindByID(42)
	assert.ErrorIs(t, err, util.ErrAccountNotFound)

	_, err = repo.FindByUsername("ghost")
	assert.ErrorIs(t, err, util.ErrAccountNotFound)

	_, err = repo.FindByEmail("ghost@example.com")
	assert.ErrorIs(t, err, util.ErrAccountNotFound)
}

func TestListByRole(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	require.NoError(t, repo.Create(newAccount("alice", "alice@example.com")))
	require.NoError(t, repo.Create(newAccount("bob", "bob@example.com")))

	teacher := newAccount("carol", "carol@example.com")
	teacher.Role = model.RoleTeacher
	require.NoError(t, repo.Create(teacher))

	students, err := repo.ListByRole(model.RoleUser)
	require.NoError(t, err)
	assert.Len(t, students, 2)
}

func TestUpdateAtomicPersistsMutation(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	account := newAccount("alice", "alice@example.com")
	require.NoError(t, repo.Create(account))

	updated, err := repo.UpdateAtomic(account.ID, func(a *model.Account) error {
		a.City = "Almaty"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Almaty", updated.City)
	assert.Equal(t, account.Version+1, updated.Version)

	reloaded, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Almaty", reloaded.City)
}

func TestUpdateAtomicPropagatesMutateError(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	account := newAccount("alice", "alice@example.com")
	require.NoError(t, repo.Create(account))

	_, err := repo.UpdateAtomic(account.ID, func(a *model.Account) error {
		return util.ErrLessonCompleted
	})
	assert.ErrorIs(t, err, util.ErrLessonCompleted)

	// 失败的更新不推进版本号
	reloaded, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.Version, reloaded.Version)
}

func TestUpdateAtomicMissingAccount(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	_, err := repo.UpdateAtomic(42, func(a *model.Account) error { return nil })
	assert.ErrorIs(t, err, util.ErrAccountNotFound)
}

func TestUpdateAtomicConcurrentAppends(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	account := newAccount("alice", "alice@example.com")
	require.NoError(t, repo.Create(account))

	const writers = 4
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.UpdateAtomic(account.ID, func(a *model.Account) error {
				a.Progress = model.ProgressMap{}
				a.ProgressFor("web").AddLesson("seen")
				a.LoginHistory = append(a.LoginHistory, a.CreatedAt)
				return nil
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	// 每个写入者都基于最新状态重放，没有丢失更新
	reloaded, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.LoginHistory, writers)
	assert.EqualValues(t, writers, reloaded.Version)
}
