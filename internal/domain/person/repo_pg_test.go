package person

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/db"
	"github.com/clinic/frontdesk/internal/platform/db/dbtest"
	"github.com/clinic/frontdesk/internal/platform/handoff"
)

func TestRepoPG_CreateGetSoftDelete(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepo(pool)

	doc := "T-" + uuid.NewString()[:8]
	p := &Person{FirstName: "Ana", LastName: "Pérez", DocumentType: "DNI", DocumentNumber: doc}
	require.NoError(t, repo.Create(ctx, p))
	require.NotEqual(t, uuid.Nil, p.ID)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pérez", got.LastName)

	dup := &Person{FirstName: "Otra", LastName: "Persona", DocumentType: "DNI", DocumentNumber: doc}
	err = repo.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrDocumentTaken)

	require.NoError(t, repo.SoftDelete(ctx, p.ID))
	_, err = repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// The number stays taken after deletion.
	err = repo.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrDocumentTaken)
}

func TestFastCreate_ConcurrentNumberingPG(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()
	svc := NewService(NewRepo(pool), db.NewTxManager(pool), handoff.NewMemoryStore(time.Minute), zerolog.Nop())

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := svc.FastCreate(ctx, FastCreateRequest{FirstName: "Urgente " + strconv.Itoa(i)})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			num, convErr := strconv.Atoi(created.Patient.DocumentNumber)
			if convErr != nil {
				errs = append(errs, convErr)
				return
			}
			numbers = append(numbers, num)
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, n)
	sort.Ints(numbers)
	for i := 1; i < len(numbers); i++ {
		assert.NotEqual(t, numbers[i-1], numbers[i], "duplicate placeholder number")
	}
}
