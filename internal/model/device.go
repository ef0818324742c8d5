package model

// DeviceType distinguishes per-spot sensors from entrance barriers.
type DeviceType string

const (
	DeviceSensor  DeviceType = "sensor"
	DeviceBarrier DeviceType = "barrier"
)

// Device is a field device.  Barriers are bound to a facility entrance
// and validate QR payloads; sensors are bound to a spot.
type Device struct {
	ID              uint64     // devices.id
	Code            string     // devices.device_code
	Type            DeviceType // devices.device_type
	BoundSpotID     *uint64    // devices.bound_spot_id (nullable)
	BoundFacilityID *uint64    // devices.bound_facility_id (nullable)
}
