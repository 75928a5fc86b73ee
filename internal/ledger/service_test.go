package ledger

import (
	"context"
	"sync"
	"testing"

	"custody_wallet/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "addr123456"

// newTestService seeds one approved user with the given balance and returns
// the service, the store and the user id.
func newTestService(t *testing.T, balance string) (*Service, *MemStore, uint) {
	t.Helper()
	store := NewMemStore()
	id := store.AddUser(domain.User{
		Username: "alice",
		Role:     "user",
		Status:   domain.UserApproved,
		Balance:  decimal.RequireFromString(balance),
	})
	return NewService(store), store, id
}

func balanceOf(t *testing.T, store *MemStore, id uint) decimal.Decimal {
	t.Helper()
	user, err := store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return user.Balance
}

func TestCreateRejectsBadArguments(t *testing.T) {
	svc, store, userID := newTestService(t, "100")
	ctx := context.Background()

	cases := []struct {
		name    string
		kind    domain.TxKind
		amount  decimal.Decimal
		address string
	}{
		{"zero amount", domain.TxDeposit, decimal.Zero, ""},
		{"negative amount", domain.TxDeposit, decimal.NewFromInt(-5), ""},
		{"unknown kind", domain.TxKind("refund"), decimal.NewFromInt(5), ""},
		{"withdraw without address", domain.TxWithdraw, decimal.NewFromInt(5), ""},
		{"withdraw short address", domain.TxWithdraw, decimal.NewFromInt(5), "abc"},
		{"deposit with address", domain.TxDeposit, decimal.NewFromInt(5), testAddress},
		{"buy with address", domain.TxBuy, decimal.NewFromInt(5), testAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, userID, tc.kind, tc.amount, tc.address)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// No rejection left a record or touched the balance
	txns, total, err := store.ListTransactionsByUser(ctx, userID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Zero(t, total)
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(100)))
}

func TestCreateRequiresExistingApprovedUser(t *testing.T) {
	svc, store, _ := newTestService(t, "100")
	ctx := context.Background()

	_, err := svc.Create(ctx, 999, domain.TxDeposit, decimal.NewFromInt(10), "")
	assert.ErrorIs(t, err, ErrNotFound)

	pendingID := store.AddUser(domain.User{
		Username: "bob",
		Status:   domain.UserPending,
		Balance:  decimal.NewFromInt(50),
	})
	_, err = svc.Create(ctx, pendingID, domain.TxDeposit, decimal.NewFromInt(10), "")
	assert.ErrorIs(t, err, ErrUserNotApproved)
	assert.True(t, balanceOf(t, store, pendingID).Equal(decimal.NewFromInt(50)))
}

func TestWithdrawEscrowsAtCreation(t *testing.T) {
	svc, store, userID := newTestService(t, "100")
	ctx := context.Background()

	txn, err := svc.Create(ctx, userID, domain.TxWithdraw, decimal.NewFromInt(40), testAddress)
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, txn.Status)
	assert.Equal(t, testAddress, txn.Address)
	// The amount left the visible balance the instant the request was made
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(60)))

	// Approval is a balance no-op; the funds were already escrowed
	approved, balance, err := svc.Approve(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxComplete, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.True(t, balance.Equal(decimal.NewFromInt(60)))
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(60)))
}

func TestWithdrawDenyRefundsEscrow(t *testing.T) {
	svc, store, userID := newTestService(t, "100")
	ctx := context.Background()

	txn, err := svc.Create(ctx, userID, domain.TxWithdraw, decimal.NewFromInt(40), testAddress)
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(60)))

	denied, balance, err := svc.Deny(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxFailed, denied.Status)
	assert.Nil(t, denied.ApprovedAt)
	// Refund restores the pre-creation balance exactly
	assert.True(t, balance.Equal(decimal.NewFromInt(100)))
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	svc, store, userID := newTestService(t, "30")
	ctx := context.Background()

	_, err := svc.Create(ctx, userID, domain.TxWithdraw, decimal.NewFromInt(40), testAddress)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(30)))

	// The failed create left no record behind
	txns, _, err := store.ListTransactionsByUser(ctx, userID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestMultipleWithdrawalsCannotSpendSameFunds(t *testing.T) {
	svc, store, userID := newTestService(t, "100")
	ctx := context.Background()

	_, err := svc.Create(ctx, userID, domain.TxWithdraw, decimal.NewFromInt(70), testAddress)
	require.NoError(t, err)
	// The second request sees the escrowed balance, not the original one
	_, err = svc.Create(ctx, userID, domain.TxWithdraw, decimal.NewFromInt(70), testAddress)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(30)))
}

func TestDepositCreditsOnApproval(t *testing.T) {
	svc, store, userID := newTestService(t, "50")
	ctx := context.Background()

	txn, err := svc.Create(ctx, userID, domain.TxDeposit, decimal.NewFromInt(25), "")
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, txn.Status)
	// No balance effect until the admin acts
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(50)))

	_, balance, err := svc.Approve(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(75)))
}

func TestDepositDenyHasNoBalanceEffect(t *testing.T) {
	svc, _, userID := newTestService(t, "50")
	ctx := context.Background()

	txn, err := svc.Create(ctx, userID, domain.TxDeposit, decimal.NewFromInt(25), "")
	require.NoError(t, err)

	denied, balance, err := svc.Deny(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxFailed, denied.Status)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))
}

func TestBuyDebitsOnApproval(t *testing.T) {
	svc, store, userID := newTestService(t, "100")
	ctx := context.Background()

	txn, err := svc.Create(ctx, userID, domain.TxBuy, decimal.NewFromInt(80), "")
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(100)))

	_, balance, err := svc.Approve(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(20)))
}

func TestBuyInsufficientAtApprovalStaysPending(t *testing.T) {
	svc, store, userID := newTestService(t, "50")
	ctx := context.Background()

	txn, err := svc.Create(ctx, userID, domain.TxBuy, decimal.NewFromInt(80), "")
	require.NoError(t, err)

	_, _, err = svc.Approve(ctx, txn.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	// Rejected approval changed nothing: balance intact, status still pending
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(50)))
	got, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, got.Status)

	// A later deposit can make the same buy approvable
	dep, err := svc.Create(ctx, userID, domain.TxDeposit, decimal.NewFromInt(40), "")
	require.NoError(t, err)
	_, _, err = svc.Approve(ctx, dep.ID)
	require.NoError(t, err)
	_, balance, err := svc.Approve(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))
}

func TestBuyDenyHasNoBalanceEffect(t *testing.T) {
	svc, _, userID := newTestService(t, "50")
	ctx := context.Background()

	txn, err := svc.Create(ctx, userID, domain.TxBuy, decimal.NewFromInt(30), "")
	require.NoError(t, err)

	_, balance, err := svc.Deny(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))
}

func TestTerminalStatesAreFinal(t *testing.T) {
	svc, store, userID := newTestService(t, "100")
	ctx := context.Background()

	txn, err := svc.Create(ctx, userID, domain.TxDeposit, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, balance, err := svc.Approve(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(110)))

	// Second approve must reject without double-crediting
	_, _, err = svc.Approve(ctx, txn.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(110)))

	// Deny after approve must reject too
	_, _, err = svc.Deny(ctx, txn.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(110)))

	// Same for a denied withdrawal
	wd, err := svc.Create(ctx, userID, domain.TxWithdraw, decimal.NewFromInt(10), testAddress)
	require.NoError(t, err)
	_, _, err = svc.Deny(ctx, wd.ID)
	require.NoError(t, err)
	_, _, err = svc.Deny(ctx, wd.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, _, err = svc.Approve(ctx, wd.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(110)))
}

func TestApproveAndDenyUnknownTransaction(t *testing.T) {
	svc, _, _ := newTestService(t, "100")
	ctx := context.Background()

	_, _, err := svc.Approve(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = svc.Deny(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepeatedEscrowCyclesDoNotDrift(t *testing.T) {
	svc, store, userID := newTestService(t, "1")
	ctx := context.Background()
	amount := decimal.RequireFromString("0.1")

	// Ten escrow-then-refund cycles of 0.1 must restore exactly 1, which
	// float64 arithmetic would not guarantee
	for i := 0; i < 10; i++ {
		txn, err := svc.Create(ctx, userID, domain.TxWithdraw, amount, testAddress)
		require.NoError(t, err)
		_, _, err = svc.Deny(ctx, txn.ID)
		require.NoError(t, err)
	}
	assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(1)),
		"balance drifted to %s", balanceOf(t, store, userID))
}

func TestListByUserNewestFirst(t *testing.T) {
	svc, _, userID := newTestService(t, "100")
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		txn, err := svc.Create(ctx, userID, domain.TxDeposit, decimal.NewFromInt(int64(i+1)), "")
		require.NoError(t, err)
		ids = append(ids, txn.ID)
	}

	txns, total, err := svc.ListByUser(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, txns, 3)
	assert.Equal(t, []uint{ids[2], ids[1], ids[0]}, []uint{txns[0].ID, txns[1].ID, txns[2].ID})

	// Pagination slices the same ordering
	page2, total, err := svc.ListByUser(ctx, userID, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page2, 1)
	assert.Equal(t, ids[0], page2[0].ID)

	_, _, err = svc.ListByUser(ctx, 999, 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentDecisionsApplyOnce(t *testing.T) {
	svc, store, userID := newTestService(t, "100")
	ctx := context.Background()

	txn, err := svc.Create(ctx, userID, domain.TxDeposit, decimal.NewFromInt(10), "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, errs[0] = svc.Approve(ctx, txn.ID)
	}()
	go func() {
		defer wg.Done()
		_, _, errs[1] = svc.Deny(ctx, txn.ID)
	}()
	wg.Wait()

	// Exactly one decision lands; the loser sees the terminal state
	if errs[0] == nil {
		assert.ErrorIs(t, errs[1], ErrInvalidState)
		assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(110)))
	} else {
		assert.ErrorIs(t, errs[0], ErrInvalidState)
		require.NoError(t, errs[1])
		assert.True(t, balanceOf(t, store, userID).Equal(decimal.NewFromInt(100)))
	}
}
