package domain

import "time"

// ClinicType classifies the institution behind a hospital code.
type ClinicType string

const (
	ClinicTypeClinic      ClinicType = "clinic"
	ClinicTypeTraditional ClinicType = "traditional-clinic"
	ClinicTypeHospital    ClinicType = "hospital"
)

// SegmentCode returns the TYPE segment used inside clinic codes.
func (t ClinicType) SegmentCode() string {
	switch t {
	case ClinicTypeClinic:
		return "CLINIC"
	case ClinicTypeTraditional:
		return "ORIENTAL"
	case ClinicTypeHospital:
		return "HOSPITAL"
	}
	return ""
}

// ClinicTypeFromSegment maps a TYPE segment back to the enum.
func ClinicTypeFromSegment(seg string) (ClinicType, bool) {
	switch seg {
	case "CLINIC":
		return ClinicTypeClinic, true
	case "ORIENTAL":
		return ClinicTypeTraditional, true
	case "HOSPITAL":
		return ClinicTypeHospital, true
	}
	return "", false
}

func (t ClinicType) Valid() bool {
	return t.SegmentCode() != ""
}

// Region is the REGION segment of a clinic code: the 17 first-level
// administrative divisions of South Korea.
type Region string

const (
	RegionSeoul     Region = "SEOUL"
	RegionBusan     Region = "BUSAN"
	RegionDaegu     Region = "DAEGU"
	RegionIncheon   Region = "INCHEON"
	RegionGwangju   Region = "GWANGJU"
	RegionDaejeon   Region = "DAEJEON"
	RegionUlsan     Region = "ULSAN"
	RegionSejong    Region = "SEJONG"
	RegionGyeonggi  Region = "GYEONGGI"
	RegionGangwon   Region = "GANGWON"
	RegionChungbuk  Region = "CHUNGBUK"
	RegionChungnam  Region = "CHUNGNAM"
	RegionJeonbuk   Region = "JEONBUK"
	RegionJeonnam   Region = "JEONNAM"
	RegionGyeongbuk Region = "GYEONGBUK"
	RegionGyeongnam Region = "GYEONGNAM"
	RegionJeju      Region = "JEJU"
)

// Regions lists every valid region, in the order codes were first rolled out.
func Regions() []Region {
	return []Region{
		RegionSeoul, RegionBusan, RegionDaegu, RegionIncheon, RegionGwangju,
		RegionDaejeon, RegionUlsan, RegionSejong, RegionGyeonggi, RegionGangwon,
		RegionChungbuk, RegionChungnam, RegionJeonbuk, RegionJeonnam,
		RegionGyeongbuk, RegionGyeongnam, RegionJeju,
	}
}

func (r Region) Valid() bool {
	for _, known := range Regions() {
		if r == known {
			return true
		}
	}
	return false
}

// Clinic is one tenant institution. The clinic code is its public identifier;
// rows are never deleted, only deactivated (audit requirement).
type Clinic struct {
	ClinicID  string     `json:"clinic_id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Type      ClinicType `json:"type"`
	Region    Region     `json:"region"`
	Address   string     `json:"address,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Active    bool       `json:"active"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}
