package health

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSnapshot(t *testing.T) {
	st := Snapshot(time.Now().Add(-90*time.Second), 2, 3, 40)

	if st.Status != "ok" {
		t.Errorf("status = %q, want ok", st.Status)
	}
	if st.UptimeSecs < 89 || st.UptimeSecs > 91 {
		t.Errorf("uptime = %d, want ~90", st.UptimeSecs)
	}
	if st.Sessions != 2 || st.Clients != 3 || st.Events != 40 {
		t.Errorf("counters = %d/%d/%d, want 2/3/40", st.Sessions, st.Clients, st.Events)
	}
	if st.Goroutines <= 0 {
		t.Error("goroutine count missing")
	}
}

func TestSnapshotMarshals(t *testing.T) {
	data, err := json.Marshal(Snapshot(time.Now(), 0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["status"] != "ok" {
		t.Errorf("marshalled status = %v", m["status"])
	}
}
