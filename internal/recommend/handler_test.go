package recommend

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type stubRecommender struct {
	resp      Response
	err       error
	available bool
	calls     int
}

func (s *stubRecommender) Recommend(_ context.Context, _ Request) (Response, error) {
	s.calls++
	return s.resp, s.err
}

func (s *stubRecommender) Available(context.Context) (bool, error) {
	return s.available, nil
}

const validBody = `{"weightKg":4.2,"ageMonths":36,"gender":"MALE","neutered":false,"monthlyBudget":30000}`

func makeApp(r Recommender) *fiber.App {
	app := fiber.New()
	NewHandler(r, nil).RegisterPublicRoutes(app)
	return app
}

func post(t *testing.T, app *fiber.App, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/recommend", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(b)
}

func TestRecommendRoute_Success(t *testing.T) {
	stub := &stubRecommender{resp: Response{DailyCalories: 250, ByRank: []Item{{Rank: 1, FoodName: "Alpha"}}}}
	code, body := post(t, makeApp(stub), validBody)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	if !strings.Contains(body, `"recommendationsByRank":[{"rank":1`) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestRecommendRoute_ValidationNeverCallsUpstream(t *testing.T) {
	stub := &stubRecommender{}
	code, body := post(t, makeApp(stub), `{"weightKg":0,"gender":"MALE"}`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if !strings.Contains(body, `"weightKg"`) || !strings.Contains(body, `"neutered"`) {
		t.Fatalf("expected field errors, got %s", body)
	}
	if stub.calls != 0 {
		t.Fatalf("upstream should not be called for an invalid request")
	}
}

func TestRecommendRoute_Unavailable(t *testing.T) {
	stub := &stubRecommender{err: ErrUpstreamUnavailable}
	code, body := post(t, makeApp(stub), validBody)
	if code != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if !strings.Contains(body, "unavailable") {
		t.Fatalf("expected unavailable message, got %s", body)
	}
}

func TestAvailableRoute(t *testing.T) {
	app := makeApp(&stubRecommender{available: true})
	res, err := app.Test(httptest.NewRequest("GET", "/api/recommend/available", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	b, _ := io.ReadAll(res.Body)
	if string(b) != `{"available":true}` {
		t.Fatalf("unexpected body: %s", string(b))
	}
}
