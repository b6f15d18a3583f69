package service

import (
	"context"
	"fmt"

	"eduoj/internal/archive"
	"eduoj/internal/judge/judge0"
	"eduoj/internal/judge/verdict"
	"eduoj/internal/problems"
	"eduoj/internal/realtime"
	"eduoj/internal/scoreboard"
	appErr "eduoj/pkg/errors"
	"eduoj/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	// defaultLanguageID is the provider's Python 3 language.
	defaultLanguageID = 71

	defaultSourceExt = ".py"

	scoreUpdateEvent = "scoreUpdate"
)

// Submitter is the judging provider dependency. Implementations return
// exactly one record per test case, in input order, converting their own
// request failures into synthetic failure records.
type Submitter interface {
	SubmitBatch(ctx context.Context, sourceCode string, testCases []problems.TestCase, languageID int, limits judge0.Limits) ([]judge0.ExecutionRecord, error)
}

// Config holds orchestrator tuning.
type Config struct {
	LanguageID     int
	Limits         judge0.Limits
	SourceEncoding string
}

// Service drives the judging pipeline: resolve test cases, extract the
// student's source from their archive, submit the batch and normalize the
// results. Recording variants persist verdicts to the scoreboard and push a
// score update.
type Service struct {
	store     *archive.Store
	resolver  *problems.Resolver
	registry  *problems.Registry
	submitter Submitter

	scores      scoreboard.Repository
	broadcaster realtime.Broadcaster

	config Config
}

// NewService wires the orchestrator. Scores and broadcaster are optional;
// without them only Judge is usable.
func NewService(
	store *archive.Store,
	resolver *problems.Resolver,
	registry *problems.Registry,
	submitter Submitter,
	scores scoreboard.Repository,
	broadcaster realtime.Broadcaster,
	cfg Config,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("archive store is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("test case resolver is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("problem registry is required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if cfg.LanguageID == 0 {
		cfg.LanguageID = defaultLanguageID
	}

	return &Service{
		store:       store,
		resolver:    resolver,
		registry:    registry,
		submitter:   submitter,
		scores:      scores,
		broadcaster: broadcaster,
		config:      cfg,
	}, nil
}

// Judge runs one student's submission against one problem and returns one
// verdict per configured test case, in configuration order. Provider-side
// failures surface as incorrect verdicts, not as an error; the error return
// covers the stages before submission (configuration, archive, extraction).
func (s *Service) Judge(ctx context.Context, studentID, problemID string) ([]verdict.Verdict, error) {
	testCases, err := s.resolver.Resolve(problemID)
	if err != nil {
		return nil, err
	}
	if len(testCases) == 0 {
		return nil, appErr.Newf(appErr.NoTestCasesConfigured, "no test cases configured for problem %s", problemID).
			WithDetail("problem_id", problemID)
	}

	entryName := s.sourceEntryName(problemID)
	source, err := s.store.ExtractFile(ctx, s.store.ArchivePath(studentID), entryName, s.config.SourceEncoding)
	if err != nil {
		return nil, appErr.GetError(err).WithDetail("student_id", studentID).WithDetail("problem_id", problemID)
	}

	records, err := s.submitter.SubmitBatch(ctx, source, testCases, s.config.LanguageID, s.config.Limits)
	if err != nil {
		return nil, err
	}

	verdicts := verdict.NormalizeBatch(testCases, records)
	logger.Info(ctx, "submission judged",
		zap.String("student_id", studentID),
		zap.String("problem_id", problemID),
		zap.Int("test_cases", len(verdicts)),
		zap.Int("passed", countCorrect(verdicts)),
	)
	return verdicts, nil
}

// JudgeAndRecord judges one submission, persists the verdicts to the
// scoreboard and pushes the updated row as a scoreUpdate event.
func (s *Service) JudgeAndRecord(ctx context.Context, studentID, problemID string) ([]verdict.Verdict, error) {
	verdicts, err := s.Judge(ctx, studentID, problemID)
	if err != nil {
		return nil, err
	}
	if s.scores == nil {
		return verdicts, nil
	}

	puzzleAmount := 0
	studentName := ""
	if cfg := s.registry.Current(); cfg != nil {
		puzzleAmount = len(cfg.Puzzles)
		if student, ok, _ := s.registry.LookupStudent(studentID); ok {
			studentName = student.Name
		}
	}

	if err := s.scores.EnsureStudent(ctx, nil, studentID, studentName, puzzleAmount); err != nil {
		return verdicts, err
	}
	if err := s.scores.RecordResults(ctx, nil, studentID, problemID, verdicts, puzzleAmount); err != nil {
		return verdicts, err
	}

	if s.broadcaster != nil {
		if entry, err := s.scores.Get(ctx, nil, studentID); err == nil && entry != nil {
			s.broadcaster.Broadcast(scoreUpdateEvent, entry)
		}
	}
	return verdicts, nil
}

// JudgeAllSummary reports one full grading run.
type JudgeAllSummary struct {
	Students int      `json:"students"`
	Problems int      `json:"problems"`
	Judged   int      `json:"judged"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// JudgeAll grades every uploaded submission archive against every configured
// problem, sequentially, recording results as it goes. A failed pairing is
// noted in the summary and does not stop the run.
func (s *Service) JudgeAll(ctx context.Context) (*JudgeAllSummary, error) {
	studentIDs, err := s.store.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	problemIDs, err := s.registry.ProblemIDs()
	if err != nil {
		return nil, err
	}

	summary := &JudgeAllSummary{Students: len(studentIDs), Problems: len(problemIDs)}
	for _, studentID := range studentIDs {
		for _, problemID := range problemIDs {
			if err := ctx.Err(); err != nil {
				return summary, appErr.Wrap(err, appErr.JudgeRequestFailed)
			}
			if _, err := s.JudgeAndRecord(ctx, studentID, problemID); err != nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, fmt.Sprintf("%s/%s: %s", studentID, problemID, err.Error()))
				logger.Warn(ctx, "judging pairing failed",
					zap.String("student_id", studentID),
					zap.String("problem_id", problemID),
					zap.Error(err),
				)
				continue
			}
			summary.Judged++
		}
	}
	return summary, nil
}

// sourceEntryName picks the archive entry to judge for a problem. A problem
// may name its source file explicitly; the default is {problemID}.py.
func (s *Service) sourceEntryName(problemID string) string {
	if cfg := s.registry.Current(); cfg != nil {
		for _, p := range cfg.Puzzles {
			if p.ID == problemID && p.SourceName != "" {
				return p.SourceName
			}
		}
	}
	return problemID + defaultSourceExt
}

func countCorrect(verdicts []verdict.Verdict) int {
	n := 0
	for _, v := range verdicts {
		if v.Correct {
			n++
		}
	}
	return n
}
