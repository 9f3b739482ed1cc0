package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-ledger/internal/chart"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/period"
	"github.com/Veraticus/spice-ledger/internal/views"
)

type historyResponse struct {
	Month        string              `json:"month"`
	Label        string              `json:"label"`
	Type         string              `json:"type"`
	Transactions []model.Transaction `json:"transactions"`
	Months       []model.MonthOption `json:"months"`
}

type yearSummaryResponse struct {
	Summary model.MonthSummary `json:"summary"`
	Year    int                `json:"year"`
}

type breakdownResponse struct {
	Period    string                `json:"period"`
	Label     string                `json:"label"`
	Breakdown []model.CategoryShare `json:"breakdown"`
}

type cashResponse struct {
	TotalCash decimal.Decimal `json:"totalCash"`
}

// month reads ?month=YYYY-MM, falling back to the current month.
func (s *Server) month(r *http.Request) period.YearMonth {
	if ym, ok := period.ParseMonthParam(r.URL.Query().Get("month")); ok {
		return ym
	}
	return period.Of(s.now())
}

// year reads ?year=YYYY, falling back to the current year.
func (s *Server) year(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if y, err := strconv.Atoi(raw); err == nil && len(raw) == 4 {
		return y, true
	}
	return s.now().UTC().Year(), false
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ym := s.month(r)
	s.cached(w, r, views.Dashboard, ym.Key(), func() (views.Entry, error) {
		dash, err := s.reports.Dashboard(r.Context(), caller(r), ym)
		if err != nil {
			return views.Entry{}, err
		}
		return jsonEntry(http.StatusOK, dash)
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ym := s.month(r)
	typeName := "all"
	var filter *model.CategoryType
	if t := model.CategoryType(r.URL.Query().Get("type")); t.Valid() {
		filter = &t
		typeName = string(t)
	}

	s.cached(w, r, views.History, ym.Key()+"|"+typeName, func() (views.Entry, error) {
		txns, err := s.reports.History(r.Context(), caller(r), ym, filter)
		if err != nil {
			return views.Entry{}, err
		}
		months, err := s.reports.AvailableMonths(r.Context(), caller(r))
		if err != nil {
			return views.Entry{}, err
		}
		if txns == nil {
			txns = []model.Transaction{}
		}
		return jsonEntry(http.StatusOK, historyResponse{
			Month:        ym.Key(),
			Label:        period.LongLabel(ym.Time()),
			Type:         typeName,
			Transactions: txns,
			Months:       months,
		})
	})
}

func (s *Server) handleYearSummary(w http.ResponseWriter, r *http.Request) {
	year, _ := s.year(r)
	summary, err := s.reports.YearSummary(r.Context(), caller(r), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, yearSummaryResponse{Year: year, Summary: summary})
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	if year, ok := s.year(r); ok && r.URL.Query().Get("month") == "" {
		s.cached(w, r, views.Trends, "categories|"+strconv.Itoa(year), func() (views.Entry, error) {
			shares, err := s.reports.YearlyCategoryBreakdown(r.Context(), caller(r), year)
			if err != nil {
				return views.Entry{}, err
			}
			return jsonEntry(http.StatusOK, breakdownResponse{
				Period:    strconv.Itoa(year),
				Label:     strconv.Itoa(year),
				Breakdown: nonNil(shares),
			})
		})
		return
	}

	ym := s.month(r)
	s.cached(w, r, views.Trends, "categories|"+ym.Key(), func() (views.Entry, error) {
		shares, err := s.reports.MonthlyCategoryBreakdown(r.Context(), caller(r), ym)
		if err != nil {
			return views.Entry{}, err
		}
		return jsonEntry(http.StatusOK, breakdownResponse{
			Period:    ym.Key(),
			Label:     period.LongLabel(ym.Time()),
			Breakdown: nonNil(shares),
		})
	})
}

func nonNil(shares []model.CategoryShare) []model.CategoryShare {
	if shares == nil {
		return []model.CategoryShare{}
	}
	return shares
}

func trendMonths(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("months"))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) handleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	months := trendMonths(r)
	s.cached(w, r, views.Trends, "monthly|"+strconv.Itoa(months), func() (views.Entry, error) {
		points, err := s.reports.MonthlyTrend(r.Context(), caller(r), months)
		if err != nil {
			return views.Entry{}, err
		}
		return jsonEntry(http.StatusOK, points)
	})
}

func (s *Server) handleMonthlyTrendChart(w http.ResponseWriter, r *http.Request) {
	months := trendMonths(r)
	format := chart.SVG
	if r.URL.Query().Get("format") == string(chart.PNG) {
		format = chart.PNG
	}

	s.cached(w, r, views.Trends, "chart|"+string(format)+"|"+strconv.Itoa(months), func() (views.Entry, error) {
		points, err := s.reports.MonthlyTrend(r.Context(), caller(r), months)
		if err != nil {
			return views.Entry{}, err
		}
		var buf bytes.Buffer
		err = chart.Trend(&buf, points, format)
		if errors.Is(err, chart.ErrNotEnoughData) {
			return jsonEntry(http.StatusUnprocessableEntity, errorResponse{Message: "Select at least two months to draw a trend."})
		}
		if err != nil {
			return views.Entry{}, err
		}
		return views.Entry{Status: http.StatusOK, ContentType: format.ContentType(), Body: buf.Bytes()}, nil
	})
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.reports.AvailableMonths(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, months)
}

func (s *Server) handleCash(w http.ResponseWriter, r *http.Request) {
	cash, err := s.reports.TotalCash(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cashResponse{TotalCash: cash})
}
