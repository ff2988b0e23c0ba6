// internal/common/validation/forms.go
package validation

// SocioeconomicForm bounds household and income data.
var SocioeconomicForm = MustCompile("socioeconomicForm", `{
  "type": "object",
  "required": ["householdMembers", "dependents", "monthlyHouseholdIncome", "housingType"],
  "properties": {
    "householdMembers":       {"type": "integer", "minimum": 1, "maximum": 30},
    "dependents":             {"type": "integer", "minimum": 0, "maximum": 30},
    "monthlyHouseholdIncome": {"type": "number", "minimum": 0},
    "perCapitaIncome":        {"type": "number", "minimum": 0},
    "housingExpense":         {"type": "number", "minimum": 0},
    "foodExpense":            {"type": "number", "minimum": 0},
    "educationExpense":       {"type": "number", "minimum": 0},
    "healthExpense":          {"type": "number", "minimum": 0},
    "otherExpenses":          {"type": "number", "minimum": 0},
    "housingType":            {"type": "string", "enum": ["OWNED", "RENTED", "BORROWED", "SHARED", "OTHER"]},
    "hasDisability":          {"type": "boolean"},
    "isSingleMother":         {"type": "boolean"},
    "isSingleFather":         {"type": "boolean"},
    "fromRuralArea":          {"type": "boolean"},
    "isWorking":              {"type": "boolean"}
  }
}`)

// AcademicForm bounds the academic record. Grade averages use a 0-100 scale.
var AcademicForm = MustCompile("academicForm", `{
  "type": "object",
  "required": ["gradeAverage", "currentSemester"],
  "properties": {
    "gradeAverage":         {"type": "number", "minimum": 0, "maximum": 100},
    "currentSemester":      {"type": "integer", "minimum": 1, "maximum": 20},
    "subjectsTaken":        {"type": "integer", "minimum": 0},
    "subjectsPassed":       {"type": "integer", "minimum": 0},
    "subjectsFailed":       {"type": "integer", "minimum": 0},
    "universityActivities": {"type": "boolean"},
    "researchProjects":     {"type": "boolean"},
    "academicAwards":       {"type": "boolean"}
  }
}`)
