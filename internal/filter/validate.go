package filter

import (
	"fmt"
	"strings"
)

// Validate checks that n is a well-formed tree the evaluator can run.
// Errors wrap ErrInvalidFilter and name the offending node's position.
func Validate(n Node) error {
	return validate(n, "$")
}

func validate(n Node, path string) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w at %s: %s", ErrInvalidFilter, path, fmt.Sprintf(format, args...))
	}

	switch v := n.(type) {
	case nil:
		return invalid("missing node")
	case Name:
		if v.Substring == "" {
			return invalid("empty name substring")
		}
	case Address:
		if strings.TrimSpace(v.Address) == "" {
			return invalid("empty address")
		}
	case Manufacturer, IsFavorite:
	case MinLostTime:
		if v.ThresholdMs < 0 {
			return invalid("negative threshold %d", v.ThresholdMs)
		}
	case FirstDetectionInterval:
		if err := checkInterval(v.FromMs, v.ToMs); err != nil {
			return invalid("%v", err)
		}
	case LastDetectionInterval:
		if err := checkInterval(v.FromMs, v.ToMs); err != nil {
			return invalid("%v", err)
		}
	case AirdropContact:
		if strings.TrimSpace(v.Contact) == "" {
			return invalid("empty contact")
		}
		if v.MinLostTimeMs != nil && *v.MinLostTimeMs < 0 {
			return invalid("negative min lost time %d", *v.MinLostTimeMs)
		}
	case IsFollowing:
		if v.MinDurationMs <= 0 {
			return invalid("min duration must be positive, got %d", v.MinDurationMs)
		}
		if v.DetectionIntervalMs < 0 {
			return invalid("negative detection interval %d", v.DetectionIntervalMs)
		}
	case DeviceLocation:
		if err := checkArea(v.Lat, v.Lng, v.RadiusMeters); err != nil {
			return invalid("%v", err)
		}
		if err := checkInterval(v.FromMs, v.ToMs); err != nil {
			return invalid("%v", err)
		}
	case UserLocation:
		if err := checkArea(v.Lat, v.Lng, v.RadiusMeters); err != nil {
			return invalid("%v", err)
		}
	case Tag:
		if v.Tag == "" {
			return invalid("empty tag")
		}
	case All:
		return validateChildren(v.Children, path+".all")
	case Any:
		return validateChildren(v.Children, path+".any")
	case Not:
		return validate(v.Child, path+".not")
	default:
		return invalid("unknown node %T", n)
	}
	return nil
}

func validateChildren(children []Node, path string) error {
	for i, c := range children {
		if err := validate(c, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func checkInterval(from, to *int64) error {
	if from != nil && to != nil && *from > *to {
		return fmt.Errorf("interval start %d is after end %d", *from, *to)
	}
	return nil
}

func checkArea(lat, lng, radius float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range", lng)
	}
	if radius < 0 {
		return fmt.Errorf("negative radius %v", radius)
	}
	return nil
}
