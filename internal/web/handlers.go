package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"expense-web/internal/expense"
	"expense-web/internal/extraction"
	"expense-web/internal/upstream"
)

// maxUploadSize bounds receipt uploads (high-resolution phone photos).
const maxUploadSize = int64(50 << 20) // 50MB

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// draftFromForm rebuilds the draft from the posted field values.
func draftFromForm(r *http.Request) *expense.Draft {
	return &expense.Draft{
		Amount:         r.FormValue("amount"),
		Description:    r.FormValue("description"),
		CompanyName:    r.FormValue("companyName"),
		ExpenseDate:    r.FormValue("expenseDate"),
		CategoryID:     r.FormValue("categoryId"),
		Notes:          r.FormValue("notes"),
		ReceiptDataURI: r.FormValue("receiptDataURI"),
	}
}

// loadDashboard fetches the user's expenses and categories concurrently.
func (s *Server) loadDashboard(r *http.Request, userID string) ([]expense.Expense, []expense.Category, error) {
	g, ctx := errgroup.WithContext(r.Context())

	var expenses []expense.Expense
	var categories []expense.Category
	g.Go(func() error {
		var err error
		expenses, err = s.upstream.GetExpenses(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.upstream.GetCategories(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return expenses, categories, nil
}

// renderDashboard loads the dashboard data and renders it around the given
// draft. An upstream read failure becomes a page-level error.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, userID string, draft *expense.Draft, editID int, formError string, status int) {
	expenses, categories, err := s.loadDashboard(r, userID)
	if err != nil {
		slog.Error("Failed to load dashboard data", "error", err)
		s.render(w, "dashboard.html", http.StatusInternalServerError, dashboardData{
			PageError: "Failed to load data",
		})
		return
	}

	token, err := s.drafts.newToken()
	if err != nil {
		slog.Error("Failed to mint draft token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "dashboard.html", status, dashboardData{
		Expenses:   expense.JoinCategories(expenses, categories),
		Categories: categories,
		Draft:      draft,
		DraftToken: token,
		EditID:     editID,
		FormError:  formError,
	})
}

// handleDashboard serves the expense dashboard. With ?edit=<id> the form is
// seeded from that expense; otherwise the draft starts empty.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)

	expenses, categories, err := s.loadDashboard(r, userID)
	if err != nil {
		slog.Error("Failed to load dashboard data", "error", err)
		s.render(w, "dashboard.html", http.StatusInternalServerError, dashboardData{
			PageError: "Failed to load data",
		})
		return
	}

	draft := &expense.Draft{}
	editID := 0
	if v := r.URL.Query().Get("edit"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			for _, e := range expenses {
				if e.ID == id {
					draft = expense.FromExpense(e)
					editID = id
					break
				}
			}
		}
	}

	token, err := s.drafts.newToken()
	if err != nil {
		slog.Error("Failed to mint draft token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "dashboard.html", http.StatusOK, dashboardData{
		Expenses:   expense.JoinCategories(expenses, categories),
		Categories: categories,
		Draft:      draft,
		DraftToken: token,
		EditID:     editID,
	})
}

// handleIntent dispatches the dashboard form posts.
func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
	} else if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	switch intent := r.FormValue("intent"); intent {
	case "addExpense":
		s.addExpense(w, r)
	case "updateExpense":
		s.updateExpense(w, r)
	case "deleteExpense":
		s.deleteExpense(w, r)
	case "addCategory":
		s.addCategory(w, r)
	default:
		http.Error(w, "Invalid action", http.StatusBadRequest)
	}
}

// receiptFromForm picks up the uploaded receipt: the file part when the
// form carries one, otherwise the inline encoding retained from an earlier
// extraction round trip. A urlencoded post has no file part at all, which
// FormFile reports as ErrNotMultipart rather than ErrMissingFile.
func receiptFromForm(r *http.Request, draft *expense.Draft) (*upstream.ReceiptFile, error) {
	f, header, err := r.FormFile("receipt")
	switch {
	case err == nil:
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return &upstream.ReceiptFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}, nil
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		if draft.ReceiptDataURI == "" {
			return nil, nil
		}
		data, err := extraction.DecodeDataURI(draft.ReceiptDataURI)
		if err != nil {
			return nil, err
		}
		return &upstream.ReceiptFile{
			Filename:    "receipt.png",
			ContentType: "image/png",
			Data:        data,
		}, nil
	default:
		return nil, err
	}
}

func (s *Server) addExpense(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	draft := draftFromForm(r)

	if err := draft.Validate(); err != nil {
		s.renderDashboard(w, r, userID, draft, 0, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	userIDInt, err := strconv.Atoi(userID)
	if err != nil {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	receipt, err := receiptFromForm(r, draft)
	if err != nil {
		s.renderDashboard(w, r, userID, draft, 0, "Could not read the uploaded receipt", http.StatusBadRequest)
		return
	}

	if _, err := s.upstream.CreateExpense(r.Context(), draft.Payload(userIDInt), receipt); err != nil {
		slog.Error("Failed to add expense", "error", err)
		s.renderDashboard(w, r, userID, draft, 0, "Failed to add expense", http.StatusBadGateway)
		return
	}

	s.drafts.drop(r.FormValue("draftToken"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	draft := draftFromForm(r)

	expenseID, err := strconv.Atoi(r.FormValue("expenseId"))
	if err != nil {
		http.Error(w, "Invalid expense id", http.StatusBadRequest)
		return
	}

	if err := draft.Validate(); err != nil {
		s.renderDashboard(w, r, userID, draft, expenseID, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	userIDInt, err := strconv.Atoi(userID)
	if err != nil {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	payload := draft.Payload(userIDInt)
	payload.ID = expenseID
	if err := s.upstream.UpdateExpense(r.Context(), payload); err != nil {
		slog.Error("Failed to update expense", "expense_id", expenseID, "error", err)
		s.renderDashboard(w, r, userID, draft, expenseID, "Failed to update expense", http.StatusBadGateway)
		return
	}

	s.drafts.drop(r.FormValue("draftToken"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)

	expenseID, err := strconv.Atoi(r.FormValue("expenseId"))
	if err != nil {
		http.Error(w, "Invalid expense id", http.StatusBadRequest)
		return
	}

	if err := s.upstream.DeleteExpense(r.Context(), expenseID, userID); err != nil {
		slog.Error("Failed to delete expense", "expense_id", expenseID, "error", err)
		s.renderDashboard(w, r, userID, &expense.Draft{}, 0, "Failed to delete expense", http.StatusBadGateway)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) addCategory(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)

	name := strings.TrimSpace(r.FormValue("categoryName"))
	if name == "" {
		http.Error(w, "Category name is required", http.StatusBadRequest)
		return
	}

	if _, err := s.upstream.AddCategory(r.Context(), userID, name); err != nil {
		slog.Error("Failed to add category", "error", err)
		s.renderDashboard(w, r, userID, &expense.Draft{}, 0, "Failed to add category", http.StatusBadGateway)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLoginForm serves the login page. An already-authenticated visitor
// goes straight to the dashboard.
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, err := s.sessions.Authenticate(cookie.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	s.render(w, "login.html", http.StatusOK, loginData{})
}

// handleLogin validates credentials against the upstream API and issues a
// session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		s.render(w, "login.html", http.StatusUnprocessableEntity, loginData{Error: "Email and password are required"})
		return
	}

	userID, err := s.upstream.Login(r.Context(), email, password)
	switch {
	case errors.Is(err, upstream.ErrInvalidCredentials):
		s.render(w, "login.html", http.StatusUnauthorized, loginData{Error: "Invalid username/password"})
		return
	case err != nil:
		slog.Error("Login failed upstream", "error", err)
		s.render(w, "login.html", http.StatusBadGateway, loginData{Error: "Login is temporarily unavailable"})
		return
	}

	token, err := s.sessions.Issue(userID)
	if err != nil {
		slog.Error("Failed to issue session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout revokes the current session so the token re-fails on
// subsequent requests, then clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := s.sessions.Revoke(cookie.Value); err != nil {
			slog.Error("Failed to revoke session", "error", err)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// extractResponse is the terminal draft state returned to the form.
type extractResponse struct {
	Amount         string `json:"amount"`
	Description    string `json:"description"`
	CompanyName    string `json:"companyName"`
	ExpenseDate    string `json:"expenseDate"`
	CategoryID     string `json:"categoryId"`
	Notes          string `json:"notes"`
	ReceiptDataURI string `json:"receiptDataURI"`
	Busy           bool   `json:"busy"`
}

// handleExtract runs one receipt upload through encode, extraction, and
// reconciliation, and returns the updated draft. A second upload for the
// same draft while one is in flight is refused, not queued.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	token := r.FormValue("draftToken")
	if token == "" {
		jsonError(w, "Missing draft token", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("receipt")
	if err != nil {
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		jsonError(w, "Error reading file", http.StatusBadRequest)
		return
	}

	categories, err := s.upstream.GetCategories(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load categories for extraction", "error", err)
		jsonError(w, "Failed to load categories", http.StatusBadGateway)
		return
	}

	draft := draftFromForm(r)
	guard := s.drafts.guard(token)

	err = s.scans.ScanReceipt(r.Context(), draft, guard, data, header.Header.Get("Content-Type"), categories)
	switch {
	case errors.Is(err, expense.ErrExtractionBusy):
		jsonError(w, "Extraction already in progress", http.StatusConflict)
		return
	case err != nil:
		jsonError(w, "Could not read the uploaded receipt", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(extractResponse{
		Amount:         draft.Amount,
		Description:    draft.Description,
		CompanyName:    draft.CompanyName,
		ExpenseDate:    draft.ExpenseDate,
		CategoryID:     draft.CategoryID,
		Notes:          draft.Notes,
		ReceiptDataURI: draft.ReceiptDataURI,
		Busy:           false,
	})
}
