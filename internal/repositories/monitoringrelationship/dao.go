package monitoringrelationship

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	relationshipsTable = "monitoring_relationships"
)

var relationshipStruct = database.NewStruct(new(models.MonitoringRelationship))

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
