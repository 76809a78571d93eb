package source

import (
	"fmt"
	"strings"
)

// Column names of the fixed schema.
const (
	ColUnit  = "unit_number"
	ColCycle = "time_in_cycles"

	settingPrefix = "operational_setting_"
	sensorPrefix  = "sensor_measurement_"

	numSettings = 3
	numSensors  = 21

	// schemaWidth counts the named columns; schemaWidth+trailingColumns is
	// the width of a row that still carries its ignorable trailing columns.
	schemaWidth     = 2 + numSettings + numSensors
	trailingColumns = 2
)

// ValueColumns returns the names of the value columns (settings then
// sensors) in file order. Unit and cycle are held separately on each Row.
func ValueColumns() []string {
	cols := make([]string, 0, numSettings+numSensors)
	for i := 1; i <= numSettings; i++ {
		cols = append(cols, fmt.Sprintf("%s%d", settingPrefix, i))
	}
	for i := 1; i <= numSensors; i++ {
		cols = append(cols, fmt.Sprintf("%s%d", sensorPrefix, i))
	}
	return cols
}

// IsSensor reports whether name is a raw sensor measurement column.
func IsSensor(name string) bool {
	return strings.HasPrefix(name, sensorPrefix) && !strings.Contains(name, "_roll")
}
