package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/validation"
)

const maxBodyBytes = 1 << 20

// flexString accepts a JSON string or number. Form clients send amounts
// and ids either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

type transactionRequest struct {
	Description     string             `json:"description"`
	Amount          flexString         `json:"amount"`
	TransactionDate string             `json:"transactionDate"`
	Type            model.CategoryType `json:"type"`
	CategoryID      flexString         `json:"categoryId"`
}

type transactionPatchRequest struct {
	Description     *string             `json:"description"`
	Amount          *flexString         `json:"amount"`
	TransactionDate *string             `json:"transactionDate"`
	Type            *model.CategoryType `json:"type"`
	CategoryID      *flexString         `json:"categoryId"`
}

type recategorizeRequest struct {
	CategoryID flexString `json:"categoryId"`
	IDs        []int64    `json:"ids"`
}

// parseDate reads a YYYY-MM-DD date. Anything else yields the zero time,
// which validation reports as a missing date.
func parseDate(s string) time.Time {
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return d
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return common.NewUserError("Request body is not valid JSON.", fmt.Errorf("%w: %w", common.ErrValidation, err))
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id", common.ErrNotFound)
	}
	return id, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in := validation.TransactionInput{
		Description: req.Description,
		Amount:      validation.NormalizeAmount(string(req.Amount)),
		Type:        req.Type,
		CategoryID:  string(req.CategoryID),
	}
	if d := parseDate(req.TransactionDate); !d.IsZero() {
		in.TransactionDate = &d
	}

	writeResult(w, r, s.ledger.Create(r.Context(), in), http.StatusCreated)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeResult(w, r, ledger.Result{Err: err, Message: ledger.MsgNotFound}, http.StatusOK)
		return
	}

	var req transactionPatchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch := validation.TransactionPatch{
		Description: req.Description,
		Type:        req.Type,
	}
	if req.Amount != nil {
		amount := validation.NormalizeAmount(string(*req.Amount))
		patch.Amount = &amount
	}
	if req.CategoryID != nil {
		ref := string(*req.CategoryID)
		patch.CategoryID = &ref
	}
	if req.TransactionDate != nil {
		d := parseDate(*req.TransactionDate)
		patch.TransactionDate = &d
	}

	writeResult(w, r, s.ledger.Update(r.Context(), id, patch), http.StatusOK)
}

func (s *Server) handleRecategorize(w http.ResponseWriter, r *http.Request) {
	var req recategorizeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, r, s.ledger.BulkRecategorize(r.Context(), req.IDs, string(req.CategoryID)), http.StatusOK)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeResult(w, r, ledger.Result{Err: err, Message: ledger.MsgNotFound}, http.StatusOK)
		return
	}
	writeResult(w, r, s.ledger.Delete(r.Context(), id), http.StatusOK)
}
