package counting

import "fmt"

// VehicleClass is one of the enumerated vehicle classes the upstream
// detector is configured to emit. Anything else is rejected at the
// ingest boundary and never reaches the counting core.
type VehicleClass string

const (
	ClassCar        VehicleClass = "car"
	ClassMotorcycle VehicleClass = "motorcycle"
	ClassBus        VehicleClass = "bus"
	ClassTruck      VehicleClass = "truck"
)

// Classes returns the enumerated vehicle classes in canonical order.
func Classes() []VehicleClass {
	return []VehicleClass{ClassCar, ClassMotorcycle, ClassBus, ClassTruck}
}

// ParseClass validates a class label from the wire.
func ParseClass(s string) (VehicleClass, error) {
	switch VehicleClass(s) {
	case ClassCar, ClassMotorcycle, ClassBus, ClassTruck:
		return VehicleClass(s), nil
	}
	return "", fmt.Errorf("unknown vehicle class %q", s)
}

// cocoClassMap mirrors the detector-side COCO id filter (car=2,
// motorcycle=3, bus=5, truck=7).
var cocoClassMap = map[int]VehicleClass{
	2: ClassCar,
	3: ClassMotorcycle,
	5: ClassBus,
	7: ClassTruck,
}

// ClassFromCocoID maps a COCO class id to a VehicleClass. The second
// return is false for ids outside the enumerated set.
func ClassFromCocoID(id int) (VehicleClass, bool) {
	c, ok := cocoClassMap[id]
	return c, ok
}
