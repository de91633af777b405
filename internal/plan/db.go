// AngelaMos | 2026
// db.go

package plan

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ToolAccess is stored as a JSONB column on users and membership products.

func (ta ToolAccess) Value() (driver.Value, error) {
	if ta == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(ta)
}

func (ta *ToolAccess) Scan(src any) error {
	if src == nil {
		*ta = ToolAccess{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan ToolAccess: unsupported type %T", src)
	}

	if len(data) == 0 {
		*ta = ToolAccess{}
		return nil
	}

	return json.Unmarshal(data, ta)
}
