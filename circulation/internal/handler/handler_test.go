package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/handler"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/pkg/auth"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	service_mocks "github.com/Astemirdum/library-circulation/circulation/internal/handler/mocks"
)

var secret = []byte("test-secret")

type mocks struct {
	txn   *service_mocks.MockTransactionService
	fine  *service_mocks.MockFineService
	res   *service_mocks.MockReservationService
	cat   *service_mocks.MockCatalogService
	stats *service_mocks.MockStatsService
}

func newRouter(t *testing.T) (*echo.Echo, mocks) {
	t.Helper()
	c := gomock.NewController(t)
	m := mocks{
		txn:   service_mocks.NewMockTransactionService(c),
		fine:  service_mocks.NewMockFineService(c),
		res:   service_mocks.NewMockReservationService(c),
		cat:   service_mocks.NewMockCatalogService(c),
		stats: service_mocks.NewMockStatsService(c),
	}
	h := handler.New(handler.Services{
		Transactions: m.txn,
		Fines:        m.fine,
		Reservations: m.res,
		Catalog:      m.cat,
		Stats:        m.stats,
	}, zap.NewNop(), handler.WithAuthSecret(secret))
	return h.NewRouter(), m
}

func token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := auth.NewToken(secret, auth.Profile{Username: "tester", Role: role}, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, e *echo.Echo, method, target, body string, role auth.Role) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, http.NoBody)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, role))
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func body(w *httptest.ResponseRecorder) string {
	return strings.Trim(w.Body.String(), "\n")
}

func TestHandler_BorrowBook(t *testing.T) {
	t.Parallel()
	bookID, memberID := uuid.New(), uuid.New()
	type mockBehavior func(m mocks)

	tests := []struct {
		name         string
		body         string
		role         auth.Role
		mockBehavior mockBehavior
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok",
			body: fmt.Sprintf(`{"bookId":"%s","memberId":"%s","days":7}`, bookID, memberID),
			role: auth.RoleMember,
			mockBehavior: func(m mocks) {
				days := 7
				m.txn.EXPECT().
					BorrowBook(gomock.Any(), model.BorrowRequest{BookID: bookID, MemberID: memberID, Days: &days}).
					Return(model.TransactionView{
						Transaction: model.Transaction{TransactionNumber: "TXN-20260302-00000001", Status: model.TransactionActive},
						BookTitle:   "Dune",
					}, nil)
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "err. no token",
			body:         fmt.Sprintf(`{"bookId":"%s","memberId":"%s"}`, bookID, memberID),
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"message":"No Authorization Header"}`,
		},
		{
			name:         "err. member required",
			body:         fmt.Sprintf(`{"bookId":"%s"}`, bookID),
			role:         auth.RoleMember,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "err. days out of range",
			body:         fmt.Sprintf(`{"bookId":"%s","memberId":"%s","days":91}`, bookID, memberID),
			role:         auth.RoleMember,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "err. not available",
			body: fmt.Sprintf(`{"bookId":"%s","memberId":"%s"}`, bookID, memberID),
			role: auth.RoleMember,
			mockBehavior: func(m mocks) {
				m.txn.EXPECT().BorrowBook(gomock.Any(), gomock.Any()).
					Return(model.TransactionView{}, errs.RuleViolation(errs.MsgBookNotAvailable))
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"Book is not available"}`,
		},
		{
			name: "err. book not found",
			body: fmt.Sprintf(`{"bookId":"%s","memberId":"%s"}`, bookID, memberID),
			role: auth.RoleMember,
			mockBehavior: func(m mocks) {
				m.txn.EXPECT().BorrowBook(gomock.Any(), gomock.Any()).
					Return(model.TransactionView{}, errs.NotFound("Book %s not found", bookID))
			},
			expectedCode: http.StatusNotFound,
			expectedBody: fmt.Sprintf(`{"message":"Book %s not found"}`, bookID),
		},
		{
			name: "err. internal",
			body: fmt.Sprintf(`{"bookId":"%s","memberId":"%s"}`, bookID, memberID),
			role: auth.RoleMember,
			mockBehavior: func(m mocks) {
				m.txn.EXPECT().BorrowBook(gomock.Any(), gomock.Any()).
					Return(model.TransactionView{}, errors.New("pq: connection refused"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"message":"internal server error"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)

			w := do(t, e, http.MethodPost, "/api/transactions/borrow", tt.body, tt.role)

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, body(w))
			}
		})
	}
}

func TestHandler_BorrowBookResponse(t *testing.T) {
	e, m := newRouter(t)
	txnID := uuid.New()
	m.txn.EXPECT().BorrowBook(gomock.Any(), gomock.Any()).Return(model.TransactionView{
		Transaction: model.Transaction{ID: txnID, Status: model.TransactionActive, TransactionNumber: "TXN-1"},
		BookTitle:   "Dune",
		MemberName:  "Ada Lovelace",
	}, nil)

	w := do(t, e, http.MethodPost, "/api/transactions/borrow",
		fmt.Sprintf(`{"bookId":"%s","memberId":"%s"}`, uuid.New(), uuid.New()), auth.RoleMember)
	require.Equal(t, http.StatusCreated, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, txnID.String(), got["id"])
	require.Equal(t, "ACTIVE", got["status"])
	require.Equal(t, "Dune", got["bookTitle"])
	require.Equal(t, "Ada Lovelace", got["memberName"])
}

func TestHandler_ReturnAndRenew(t *testing.T) {
	t.Parallel()
	txnID := uuid.New()

	t.Run("return", func(t *testing.T) {
		e, m := newRouter(t)
		m.txn.EXPECT().ReturnBook(gomock.Any(), model.ReturnRequest{TransactionID: txnID, Notes: "ok"}).
			Return(model.TransactionView{}, nil)
		w := do(t, e, http.MethodPost, "/api/transactions/return", fmt.Sprintf(`{"transactionId":"%s","notes":"ok"}`, txnID), auth.RoleMember)
		require.Equal(t, http.StatusOK, w.Code)
	})
	t.Run("return twice", func(t *testing.T) {
		e, m := newRouter(t)
		m.txn.EXPECT().ReturnBook(gomock.Any(), gomock.Any()).
			Return(model.TransactionView{}, errs.RuleViolation(errs.MsgAlreadyReturned))
		w := do(t, e, http.MethodPost, "/api/transactions/return", fmt.Sprintf(`{"transactionId":"%s"}`, txnID), auth.RoleMember)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, `{"message":"Transaction is already returned"}`, body(w))
	})
	t.Run("renew", func(t *testing.T) {
		e, m := newRouter(t)
		days := 7
		m.txn.EXPECT().RenewBook(gomock.Any(), model.RenewRequest{TransactionID: txnID, AdditionalDays: &days}).
			Return(model.TransactionView{}, nil)
		w := do(t, e, http.MethodPost, "/api/transactions/renew", fmt.Sprintf(`{"transactionId":"%s","additionalDays":7}`, txnID), auth.RoleMember)
		require.Equal(t, http.StatusOK, w.Code)
	})
	t.Run("renew too long", func(t *testing.T) {
		e, _ := newRouter(t)
		w := do(t, e, http.MethodPost, "/api/transactions/renew", fmt.Sprintf(`{"transactionId":"%s","additionalDays":31}`, txnID), auth.RoleMember)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_Listings(t *testing.T) {
	t.Parallel()
	memberID := uuid.New()

	t.Run("overdue paging", func(t *testing.T) {
		e, m := newRouter(t)
		m.txn.EXPECT().ListOverdue(gomock.Any(), model.PageRequest{Page: 2, PageSize: 5}).
			Return(model.Page[model.TransactionView]{Items: []model.TransactionView{}, TotalCount: 6, Page: 2, PageSize: 5}, nil)
		w := do(t, e, http.MethodGet, "/api/transactions/overdue?page=2&pageSize=5", "", auth.RoleLibrarian)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, `{"items":[],"totalCount":6,"page":2,"pageSize":5}`, body(w))
	})
	t.Run("page size too big", func(t *testing.T) {
		e, _ := newRouter(t)
		w := do(t, e, http.MethodGet, "/api/transactions/active?pageSize=101", "", auth.RoleLibrarian)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("member transactions", func(t *testing.T) {
		e, m := newRouter(t)
		m.txn.EXPECT().ListMemberTransactions(gomock.Any(), memberID, model.PageRequest{}).
			Return(model.Page[model.TransactionView]{Items: []model.TransactionView{}, Page: 1, PageSize: 20}, nil)
		w := do(t, e, http.MethodGet, "/api/transactions/member/"+memberID.String(), "", auth.RoleMember)
		require.Equal(t, http.StatusOK, w.Code)
	})
	t.Run("invalid id", func(t *testing.T) {
		e, _ := newRouter(t)
		w := do(t, e, http.MethodGet, "/api/transactions/not-a-uuid", "", auth.RoleMember)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, `{"message":"invalid id"}`, body(w))
	})
	t.Run("transaction not found", func(t *testing.T) {
		e, m := newRouter(t)
		id := uuid.New()
		m.txn.EXPECT().GetTransaction(gomock.Any(), id).
			Return(model.TransactionView{}, errs.NotFound("Transaction %s not found", id))
		w := do(t, e, http.MethodGet, "/api/transactions/"+id.String(), "", auth.RoleMember)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_Fines(t *testing.T) {
	t.Parallel()
	fineID, txnID := uuid.New(), uuid.New()

	tests := []struct {
		name         string
		target       string
		body         string
		role         auth.Role
		mockBehavior func(m mocks)
		expectedCode int
	}{
		{
			name:   "pay",
			target: "/api/fines/pay",
			body:   fmt.Sprintf(`{"fineId":"%s","amount":"3.00","paymentMethod":"CASH"}`, fineID),
			role:   auth.RoleMember,
			mockBehavior: func(m mocks) {
				m.fine.EXPECT().PayFine(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req model.PayFineRequest) (model.Fine, error) {
						if !req.Amount.Equal(decimal.RequireFromString("3")) {
							return model.Fine{}, errors.New("unexpected amount")
						}
						return model.Fine{ID: fineID, Status: model.FinePaid}, nil
					})
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "pay without method",
			target:       "/api/fines/pay",
			body:         fmt.Sprintf(`{"fineId":"%s","amount":3}`, fineID),
			role:         auth.RoleMember,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:   "pay settled fine",
			target: "/api/fines/pay",
			body:   fmt.Sprintf(`{"fineId":"%s","amount":1,"paymentMethod":"CASH"}`, fineID),
			role:   auth.RoleMember,
			mockBehavior: func(m mocks) {
				m.fine.EXPECT().PayFine(gomock.Any(), gomock.Any()).Return(model.Fine{}, errs.RuleViolation(errs.MsgFineNotPayable))
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "waive as member",
			target:       "/api/fines/waive",
			body:         fmt.Sprintf(`{"fineId":"%s","reason":"goodwill"}`, fineID),
			role:         auth.RoleMember,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:   "waive as librarian",
			target: "/api/fines/waive",
			body:   fmt.Sprintf(`{"fineId":"%s","reason":"goodwill"}`, fineID),
			role:   auth.RoleLibrarian,
			mockBehavior: func(m mocks) {
				m.fine.EXPECT().WaiveFine(gomock.Any(), model.WaiveFineRequest{FineID: fineID, Reason: "goodwill"}).
					Return(model.Fine{ID: fineID, Status: model.FineWaived}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:   "issue as admin",
			target: "/api/fines",
			body:   fmt.Sprintf(`{"transactionId":"%s","type":"DAMAGED","amount":"12.50"}`, txnID),
			role:   auth.RoleAdmin,
			mockBehavior: func(m mocks) {
				m.fine.EXPECT().IssueFine(gomock.Any(), gomock.Any()).Return(model.Fine{ID: fineID}, nil)
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "issue with unknown type",
			target:       "/api/fines",
			body:         fmt.Sprintf(`{"transactionId":"%s","type":"LATE","amount":"1"}`, txnID),
			role:         auth.RoleLibrarian,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)
			w := do(t, e, http.MethodPost, tt.target, tt.body, tt.role)
			require.Equal(t, tt.expectedCode, w.Code, body(w))
		})
	}
}

func TestHandler_Reservations(t *testing.T) {
	t.Parallel()
	bookID, memberID, resID := uuid.New(), uuid.New(), uuid.New()
	createBody := fmt.Sprintf(`{"bookId":"%s","memberId":"%s","priority":3}`, bookID, memberID)

	t.Run("create", func(t *testing.T) {
		e, m := newRouter(t)
		priority := 3
		gomock.InOrder(
			m.res.EXPECT().HasActiveReservation(gomock.Any(), bookID, memberID).Return(false, nil),
			m.res.EXPECT().CreateReservation(gomock.Any(), model.CreateReservationRequest{BookID: bookID, MemberID: memberID, Priority: &priority}).
				Return(model.Reservation{ID: resID, Status: model.ReservationActive, Priority: 3}, nil),
		)
		w := do(t, e, http.MethodPost, "/api/reservations", createBody, auth.RoleMember)
		require.Equal(t, http.StatusCreated, w.Code)
	})
	t.Run("duplicate", func(t *testing.T) {
		e, m := newRouter(t)
		m.res.EXPECT().HasActiveReservation(gomock.Any(), bookID, memberID).Return(true, nil)
		w := do(t, e, http.MethodPost, "/api/reservations", createBody, auth.RoleMember)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, fmt.Sprintf(`{"message":"%s"}`, errs.MsgDuplicateReservation), body(w))
	})
	t.Run("priority out of range", func(t *testing.T) {
		e, _ := newRouter(t)
		w := do(t, e, http.MethodPost, "/api/reservations",
			fmt.Sprintf(`{"bookId":"%s","memberId":"%s","priority":11}`, bookID, memberID), auth.RoleMember)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("cancel", func(t *testing.T) {
		e, m := newRouter(t)
		m.res.EXPECT().CancelReservation(gomock.Any(), model.CancelReservationRequest{ReservationID: resID, Reason: "no longer needed"}).Return(nil)
		w := do(t, e, http.MethodPost, "/api/reservations/cancel",
			fmt.Sprintf(`{"reservationId":"%s","reason":"no longer needed"}`, resID), auth.RoleMember)
		require.Equal(t, http.StatusNoContent, w.Code)
	})
	t.Run("cancel inactive", func(t *testing.T) {
		e, m := newRouter(t)
		m.res.EXPECT().CancelReservation(gomock.Any(), gomock.Any()).Return(errs.RuleViolation(errs.MsgReservationNotActive))
		w := do(t, e, http.MethodPost, "/api/reservations/cancel", fmt.Sprintf(`{"reservationId":"%s"}`, resID), auth.RoleMember)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, `{"message":"Reservation is not active"}`, body(w))
	})
	t.Run("fulfill", func(t *testing.T) {
		e, m := newRouter(t)
		m.res.EXPECT().FulfillReservation(gomock.Any(), resID).Return(nil)
		w := do(t, e, http.MethodPost, "/api/reservations/fulfill/"+resID.String(), "", auth.RoleLibrarian)
		require.Equal(t, http.StatusNoContent, w.Code)
	})
	t.Run("fulfill missing", func(t *testing.T) {
		e, m := newRouter(t)
		m.res.EXPECT().FulfillReservation(gomock.Any(), resID).Return(errs.NotFound("Reservation %s not found", resID))
		w := do(t, e, http.MethodPost, "/api/reservations/fulfill/"+resID.String(), "", auth.RoleLibrarian)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
	t.Run("expire requires librarian", func(t *testing.T) {
		e, _ := newRouter(t)
		w := do(t, e, http.MethodPost, "/api/reservations/expire", "", auth.RoleMember)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
	t.Run("expire", func(t *testing.T) {
		e, m := newRouter(t)
		m.res.EXPECT().ExpireReservations(gomock.Any()).Return(2, nil)
		w := do(t, e, http.MethodPost, "/api/reservations/expire", "", auth.RoleLibrarian)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, `{"expired":2}`, body(w))
	})
	t.Run("queue", func(t *testing.T) {
		e, m := newRouter(t)
		m.res.EXPECT().ListBookQueue(gomock.Any(), bookID).Return([]model.Reservation{}, nil)
		w := do(t, e, http.MethodGet, "/api/reservations/book/"+bookID.String(), "", auth.RoleMember)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, `[]`, body(w))
	})
}

func TestHandler_CatalogAndStats(t *testing.T) {
	t.Parallel()

	t.Run("create book as librarian", func(t *testing.T) {
		e, m := newRouter(t)
		m.cat.EXPECT().CreateBook(gomock.Any(), model.CreateBookRequest{ISBN: "978-0441013593", Title: "Dune", Author: "Frank Herbert", TotalCopies: 3}).
			Return(model.Book{ID: uuid.New(), TotalCopies: 3, AvailableCopies: 3, Status: model.BookAvailable}, nil)
		w := do(t, e, http.MethodPost, "/api/books",
			`{"isbn":"978-0441013593","title":"Dune","author":"Frank Herbert","totalCopies":3}`, auth.RoleLibrarian)
		require.Equal(t, http.StatusCreated, w.Code)
	})
	t.Run("create book as member", func(t *testing.T) {
		e, _ := newRouter(t)
		w := do(t, e, http.MethodPost, "/api/books", `{"isbn":"1","title":"t","author":"a","totalCopies":1}`, auth.RoleMember)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
	t.Run("create member with bad email", func(t *testing.T) {
		e, _ := newRouter(t)
		w := do(t, e, http.MethodPost, "/api/members", `{"firstName":"Ada","lastName":"Lovelace","email":"nope"}`, auth.RoleLibrarian)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("stats requires admin", func(t *testing.T) {
		e, _ := newRouter(t)
		w := do(t, e, http.MethodGet, "/api/stats", "", auth.RoleLibrarian)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
	t.Run("stats", func(t *testing.T) {
		e, m := newRouter(t)
		m.stats.EXPECT().GetStats(gomock.Any()).Return(model.StatsInfo{Total: 0, Events: []model.EventStat{}}, nil)
		w := do(t, e, http.MethodGet, "/api/stats", "", auth.RoleAdmin)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, `{"total":0,"events":[]}`, body(w))
	})
	t.Run("health", func(t *testing.T) {
		e, _ := newRouter(t)
		w := do(t, e, http.MethodGet, "/manage/health", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "OK", body(w))
	})
}
