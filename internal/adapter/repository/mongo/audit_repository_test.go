package mongo

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/V4T54L/notification-service/internal/domain"
)

func TestBuildAuditFilter(t *testing.T) {
	n := int64(42)
	tests := []struct {
		name   string
		filter domain.AuditFilter
		want   bson.D
	}{
		{
			name:   "Empty",
			filter: domain.AuditFilter{},
			want:   bson.D{},
		},
		{
			name:   "Project history",
			filter: domain.AuditFilter{ProjectID: "42", ProjectNumber: &n},
			want: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "metadata.projectId", Value: int64(42)}},
				bson.D{{Key: "metadata.projet", Value: int64(42)}},
				bson.D{{Key: "entityId", Value: "42"}, {Key: "serviceSource", Value: "project"}},
			}}},
		},
		{
			name:   "Non-numeric project only matches entity",
			filter: domain.AuditFilter{ProjectID: "p-x"},
			want: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "entityId", Value: "p-x"}, {Key: "serviceSource", Value: "project"}},
			}}},
		},
		{
			name:   "Plain fields",
			filter: domain.AuditFilter{ServiceSource: "user", EntityID: "e", UserID: "u"},
			want: bson.D{
				{Key: "serviceSource", Value: "user"},
				{Key: "entityId", Value: "e"},
				{Key: "userId", Value: "u"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildAuditFilter(tt.filter); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildAuditFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}
