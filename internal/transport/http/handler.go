package http

import (
	"net/http"
	"time"

	"exam-submission-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

// ClassDirectory answers class membership and records enrollments.
type ClassDirectory interface {
	app.ClassRegistry
	app.ClassEnroller
}

// Services are the use cases exposed over HTTP.
type Services struct {
	Schedules   *app.ScheduleService
	Questions   *app.QuestionService
	Submissions *app.SubmissionService
	Statistics  *app.StatisticsService
	Classes     ClassDirectory
	Feed        *app.Feed
	// Now defaults to time.Now.
	Now func() time.Time
}

type Handler struct {
	svc      Services
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewHandler(svc Services) *Handler {
	if svc.Now == nil {
		svc.Now = time.Now
	}
	if svc.Feed == nil {
		svc.Feed = app.NewFeed()
	}
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the router. corsOrigins defaults to allowing any origin.
func (h *Handler) Routes(corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", headerUserID, headerUserRole},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(pr chi.Router) {
		pr.Use(withIdentity)

		pr.Route("/schedules", func(sr chi.Router) {
			sr.Get("/", h.listSchedules)
			sr.Get("/open", h.openSchedule)
			sr.Get("/{id}", h.getSchedule)
			sr.With(requireStaff).Post("/", h.createSchedule)
			sr.With(requireStaff).Put("/{id}", h.updateSchedule)
			sr.With(requireStaff).Delete("/{id}", h.deleteSchedule)
		})

		pr.Route("/questions", func(qr chi.Router) {
			qr.Use(requireStaff)
			qr.Get("/", h.listQuestions)
			qr.Post("/", h.createQuestion)
			qr.Get("/{id}", h.getQuestion)
			qr.Put("/{id}", h.updateQuestion)
			qr.Delete("/{id}", h.deleteQuestion)
		})

		pr.Route("/submissions", func(sr chi.Router) {
			sr.Post("/", h.submit)
			sr.Get("/{id}", h.getSubmission)
			sr.Get("/user/{userId}", h.listByStudent)
			sr.Get("/user/{userId}/statistics", h.studentStatistics)

			sr.Group(func(staff chi.Router) {
				staff.Use(requireStaff)
				staff.Get("/statistics", h.overallStatistics)
				staff.Get("/statistics/stream", h.streamStatistics)
				staff.Get("/exam/{examId}", h.listByExam)
				staff.Get("/exam/{examId}/statistics", h.examStatistics)
				staff.Put("/{id}", h.updateSubmission)
				staff.Post("/{id}/grade", h.gradeSubmission)
				staff.Post("/{id}/review", h.reviewSubmission)
			})
		})

		pr.With(requireStaff).Post("/classes/{classId}/students", h.enrollStudents)
	})

	return r
}
