package monitoringstatus

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	statusesTable = "monitoring_statuses"
)

var statusStruct = database.NewStruct(new(models.MonitoringStatus))

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
