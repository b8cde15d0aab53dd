package domain_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/notifyhub/tipcast/internal/domain"
)

func TestEnqueueRequest_Validate(t *testing.T) {
	valid := domain.EnqueueRequest{HealthTipID: "tip-1", Title: "Drink water", Category: "nutrition"}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	cases := map[string]func(r *domain.EnqueueRequest){
		"healthTipId": func(r *domain.EnqueueRequest) { r.HealthTipID = "" },
		"title":       func(r *domain.EnqueueRequest) { r.Title = "   " },
		"category":    func(r *domain.EnqueueRequest) { r.Category = "" },
	}
	for field, mutate := range cases {
		t.Run("missing "+field, func(t *testing.T) {
			r := valid
			mutate(&r)
			err := r.Validate()
			if !errors.Is(err, domain.ErrMissingField) {
				t.Fatalf("expected ErrMissingField, got %v", err)
			}
			if !strings.Contains(err.Error(), field) {
				t.Fatalf("expected error to name %q, got %v", field, err)
			}
		})
	}
}

func TestEnqueueRequest_RejectsNestedID(t *testing.T) {
	r := domain.EnqueueRequest{HealthTipID: "tip-1/x", Title: "Drink water", Category: "nutrition"}
	err := r.Validate()
	if !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestCommentReplyRequest_Validate(t *testing.T) {
	valid := domain.CommentReplyRequest{
		HealthTipID:   "tip-1",
		CommentID:     "c-1",
		CommentUserID: "u-2",
		AuthorID:      "u-1",
		Content:       "Nice tip",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	r := valid
	r.CommentID = ""
	if err := r.Validate(); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}

	t.Run("user ids must be single path segments", func(t *testing.T) {
		r := valid
		r.AuthorID = "u-1/preferences"
		if err := r.Validate(); !errors.Is(err, domain.ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("title is optional", func(t *testing.T) {
		r := valid
		r.HealthTipTitle = ""
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestNewContentRequest_Validate(t *testing.T) {
	r := domain.NewContentRequest{HealthTipID: "tip-1", Title: "Sleep", Category: "sleep"}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	r.Category = ""
	if err := r.Validate(); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestHealthTip_Priority(t *testing.T) {
	if p := (&domain.HealthTip{Likes: 12}).Priority(); p != 12 {
		t.Fatalf("expected 12, got %d", p)
	}
	if p := (&domain.HealthTip{Likes: -3}).Priority(); p != 0 {
		t.Fatalf("expected negative likes to clamp to 0, got %d", p)
	}
}

func TestSubscriber(t *testing.T) {
	s := &domain.Subscriber{
		Username:    "mai",
		Preferences: domain.Preferences{Categories: domain.CategoryFlags{"nutrition": true, "sleep": false}},
	}

	if s.HasToken() {
		t.Fatal("expected no token")
	}
	if !s.InterestedIn("nutrition") {
		t.Fatal("expected interest in nutrition")
	}
	if s.InterestedIn("sleep") {
		t.Fatal("a false flag is not an interest")
	}
	if s.InterestedIn("fitness") {
		t.Fatal("an absent flag is not an interest")
	}
	if got := s.DisplayName("Someone"); got != "mai" {
		t.Fatalf("expected username fallback, got %q", got)
	}
	s.FullName = "Tran Mai"
	if got := s.DisplayName("Someone"); got != "Tran Mai" {
		t.Fatalf("expected full name, got %q", got)
	}

	var missing *domain.Subscriber
	if got := missing.DisplayName("Admin"); got != "Admin" {
		t.Fatalf("expected fallback for nil subscriber, got %q", got)
	}
}

func TestCategoryFlags_IgnoresNonBooleans(t *testing.T) {
	var s domain.Subscriber
	raw := `{"fcmToken":"tok","preferences":{"categories":{"nutrition":true,"sleep":"yes","fitness":1}}}`
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.InterestedIn("nutrition") {
		t.Fatal("expected nutrition interest")
	}
	if s.InterestedIn("sleep") || s.InterestedIn("fitness") {
		t.Fatal("non-boolean flags must not count as interest")
	}
}

func TestCategoryFlags_NonObjectMeansNoInterest(t *testing.T) {
	cases := map[string]string{
		"array categories":  `{"fcmToken":"tok","preferences":{"categories":["sleep"]}}`,
		"string categories": `{"fcmToken":"tok","preferences":{"categories":"sleep"}}`,
		"array preferences": `{"fcmToken":"tok","preferences":["sleep"]}`,
		"null preferences":  `{"fcmToken":"tok","preferences":null}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var s domain.Subscriber
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !s.HasToken() {
				t.Fatal("token must still decode")
			}
			if s.InterestedIn("sleep") {
				t.Fatal("malformed preferences must not count as interest")
			}
		})
	}
}
