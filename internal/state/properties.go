package state

// Hub-facing property names shared by the device adapters.
const (
	On               = "On"
	Brightness       = "Brightness"
	Hue              = "Hue"
	Saturation       = "Saturation"
	ColorTemperature = "ColorTemperature"

	LockCurrentState   = "LockCurrentState"
	LockTargetState    = "LockTargetState"
	ContactSensorState = "ContactSensorState"
	MotionDetected     = "MotionDetected"

	BatteryLevel     = "BatteryLevel"
	StatusLowBattery = "StatusLowBattery"

	CurrentPosition = "CurrentPosition"
	TargetPosition  = "TargetPosition"
	PositionState   = "PositionState"

	CurrentAmbientLightLevel = "CurrentAmbientLightLevel"
	CurrentTemperature       = "CurrentTemperature"
	CurrentRelativeHumidity  = "CurrentRelativeHumidity"

	Active                              = "Active"
	CurrentHumidifierDehumidifierState  = "CurrentHumidifierDehumidifierState"
	TargetHumidifierDehumidifierState   = "TargetHumidifierDehumidifierState"
	RelativeHumidityHumidifierThreshold = "RelativeHumidityHumidifierThreshold"
	WaterLevel                          = "WaterLevel"

	CurrentHeaterCoolerState = "CurrentHeaterCoolerState"
	TargetHeaterCoolerState  = "TargetHeaterCoolerState"
	ThresholdTemperature     = "ThresholdTemperature"
	RotationSpeed            = "RotationSpeed"
)

// Lock states.
const (
	LockUnsecured = 0
	LockSecured   = 1
	LockJammed    = 2
	LockUnknown   = 3
)

// Contact sensor states.
const (
	ContactDetected    = 0
	ContactNotDetected = 1
)

// Battery status.
const (
	BatteryNormal = 0
	BatteryLow    = 1
)

// Window covering position states.
const (
	PositionDecreasing = 0
	PositionIncreasing = 1
	PositionStopped    = 2
)

// Active states.
const (
	Inactive = 0
	IsActive = 1
)

// Humidifier current states.
const (
	HumidifierInactive    = 0
	HumidifierIdle        = 1
	HumidifierHumidifying = 2
)

// Humidifier target states.
const (
	HumidifierAuto = 0
	HumidifierOnly = 1
)

// Heater/cooler states.
const (
	HeaterCoolerInactive = 0
	HeaterCoolerIdle     = 1
	HeaterCoolerHeating  = 2
	HeaterCoolerCooling  = 3

	TargetAuto = 0
	TargetHeat = 1
	TargetCool = 2
)
