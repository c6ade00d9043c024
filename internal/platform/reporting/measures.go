package reporting

// MeasureDefinition is a named report over a date range. SQL takes the
// range start and end as $1 and $2.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"-"`
}

var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "attentions-by-professional",
		Name:        "Attentions by professional",
		Description: "Attentions booked per professional, split by final outcome",
		SQL: `SELECT pe.first_name || ' ' || pe.last_name AS professional,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE st.code = 'attended') AS attended,
			COUNT(*) FILTER (WHERE st.code = 'derived') AS derived
		FROM attention a
		JOIN professional pr ON pr.id = a.professional_id
		JOIN person pe ON pe.id = pr.person_id
		JOIN attention_status st ON st.id = a.status_id
		WHERE a.date BETWEEN $1::date AND $2::date
		GROUP BY 1 ORDER BY total DESC`,
	},
	{
		ID:          "derivations-by-service",
		Name:        "Derivations by service",
		Description: "Where derived patients were sent",
		SQL: `SELECT s.name AS service, COUNT(*) AS total
		FROM attention a
		JOIN service s ON s.id = a.service_id
		WHERE a.derived_from_id IS NOT NULL AND a.date BETWEEN $1::date AND $2::date
		GROUP BY s.name ORDER BY total DESC`,
	},
	{
		ID:          "emergency-registrations",
		Name:        "Emergency registrations",
		Description: "Patients registered through the emergency fast path",
		SQL: `SELECT to_char(created_at::date, 'YYYY-MM-DD') AS day, COUNT(*) AS total
		FROM person
		WHERE emergency_created AND created_at::date BETWEEN $1::date AND $2::date
		GROUP BY 1 ORDER BY 1`,
	},
	{
		ID:          "average-visit-minutes",
		Name:        "Average visit length",
		Description: "Mean minutes between start and end of finished attentions, per service",
		SQL: `SELECT s.name AS service,
			ROUND(AVG(EXTRACT(EPOCH FROM (a.ended_at - a.started_at)) / 60)::numeric, 1) AS minutes
		FROM attention a
		JOIN service s ON s.id = a.service_id
		WHERE a.started_at IS NOT NULL AND a.ended_at IS NOT NULL
			AND a.date BETWEEN $1::date AND $2::date
		GROUP BY s.name ORDER BY s.name`,
	},
}

func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
