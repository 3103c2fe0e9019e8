package models

// Category is one of the fixed interest topics offered to users.
type Category struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// Categories is the static topic list served by GET /api/v1/categories.
var Categories = []Category{
	{ID: 1, Name: "💻 Programming"},
	{ID: 2, Name: "🔬 Science"},
	{ID: 3, Name: "💼 Business"},
	{ID: 4, Name: "🎨 Design"},
	{ID: 5, Name: "🌍 Language Learning"},
	{ID: 6, Name: "📊 Data Science"},
	{ID: 7, Name: "📱 Digital Marketing"},
	{ID: 8, Name: "🧠 Personal Development"},
	{ID: 9, Name: "💰 Finance"},
	{ID: 10, Name: "✍️ Creative Writing"},
	{ID: 11, Name: "🌐 Web Development"},
	{ID: 12, Name: "📸 Photography"},
	{ID: 13, Name: "🎵 Music"},
	{ID: 14, Name: "🏥 Health & Wellness"},
	{ID: 15, Name: "🚀 Entrepreneurship"},
	{ID: 16, Name: "🤖 Artificial Intelligence"},
	{ID: 17, Name: "🔐 Cybersecurity"},
	{ID: 18, Name: "📋 Project Management"},
	{ID: 19, Name: "☁️ Cloud Computing"},
	{ID: 20, Name: "👥 Leadership"},
}
