package alertlog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"eduoj/internal/actionlog"
	"eduoj/internal/realtime"
	appErr "eduoj/pkg/errors"
	"eduoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// newAlertEvent is the WebSocket event name for freshly raised alerts.
const newAlertEvent = "newAlert"

// Service runs the anomaly check over the action logs and turns findings
// into stored, pushed alerts.
type Service struct {
	alerts      Repository
	actions     actionlog.Repository
	broadcaster realtime.Broadcaster
}

// NewService wires the alert check. The broadcaster may be nil, in which
// case new alerts are stored but not pushed.
func NewService(alerts Repository, actions actionlog.Repository, broadcaster realtime.Broadcaster) (*Service, error) {
	if alerts == nil {
		return nil, fmt.Errorf("alert repository is required")
	}
	if actions == nil {
		return nil, fmt.Errorf("action log repository is required")
	}
	return &Service{alerts: alerts, actions: actions, broadcaster: broadcaster}, nil
}

// RunCheck evaluates both anomaly queries, stores the findings and pushes a
// newAlert event for each alert not seen before. It returns the newly raised
// alerts.
func (s *Service) RunCheck(ctx context.Context) ([]Alert, error) {
	studentUsages, err := s.actions.StudentsWithManyIPs(ctx, nil)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.AlertCheckFailed)
	}
	ipUsages, err := s.actions.IPsWithManyStudents(ctx, nil)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.AlertCheckFailed)
	}

	var candidates []Alert
	for _, usage := range studentUsages {
		ips := append([]string(nil), usage.IPs...)
		sort.Strings(ips)
		candidates = append(candidates, Alert{
			StudentID: usage.StudentID,
			AlertType: TypeMultipleIPs,
			MessageID: strings.Join(ips, ","),
			Message:   fmt.Sprintf("student %s active from %d addresses: %s", usage.StudentID, len(ips), strings.Join(ips, ", ")),
		})
	}
	for _, usage := range ipUsages {
		students := append([]string(nil), usage.Students...)
		sort.Strings(students)
		candidates = append(candidates, Alert{
			// The finding concerns the address, not one student; the
			// joined list keys the dedupe instead.
			StudentID: strings.Join(students, ","),
			AlertType: TypeSharedIP,
			MessageID: usage.IP,
			IP:        usage.IP,
			Message:   fmt.Sprintf("address %s used by %d students: %s", usage.IP, len(students), strings.Join(students, ", ")),
		})
	}

	inserted, err := s.alerts.AddBatch(ctx, nil, candidates)
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		for _, alert := range inserted {
			s.broadcaster.Broadcast(newAlertEvent, alert)
		}
	}
	if len(inserted) > 0 {
		logger.Info(ctx, "security check raised alerts",
			zap.Int("new_alerts", len(inserted)),
			zap.Int("findings", len(candidates)),
		)
	}
	return inserted, nil
}
