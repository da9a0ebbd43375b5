package release

import (
	"encoding/json"
	"fmt"
)

// ModelVersionRef identifies an immutable registry entry.
type ModelVersionRef struct {
	ModelName string `json:"model_name"`
	Version   string `json:"version"`
}

func (r ModelVersionRef) URI() string {
	return fmt.Sprintf("models:/%s/%s", r.ModelName, r.Version)
}

func (r ModelVersionRef) String() string {
	return r.ModelName + "/" + r.Version
}

// OptionalVersion is the result of an alias lookup: either a version or absent.
type OptionalVersion struct {
	version string
	present bool
}

func Present(version string) OptionalVersion {
	return OptionalVersion{version: version, present: true}
}

func Absent() OptionalVersion {
	return OptionalVersion{}
}

func (v OptionalVersion) Get() (string, bool) {
	return v.version, v.present
}

func (v OptionalVersion) IsPresent() bool {
	return v.present
}

// OrEmpty returns the version or "" when absent.
func (v OptionalVersion) OrEmpty() string {
	return v.version
}

func (v OptionalVersion) String() string {
	if !v.present {
		return "<none>"
	}
	return v.version
}

func (v OptionalVersion) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	return json.Marshal(v.version)
}

func (v *OptionalVersion) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Absent()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Present(s)
	return nil
}
