package classify

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const noStatements = "No specific statements found"

const systemPrompt = "Kamu adalah analis intelijen keamanan senior yang fokus pada Potential Risk Intelligence. " +
	"Tugasmu adalah mengevaluasi tingkat risiko berdasarkan konten berita dan pernyataan dari tokoh tertentu, " +
	"serta memberikan rekomendasi yang spesifik untuk peran tokoh tersebut. " +
	"Balas HANYA dengan JSON, tanpa penjelasan tambahan."

const userPrompt = `Analisis kutipan berita berikut terkait tokoh '%[1]s'%[2]s dan berikan penilaian risiko kerawanan/kerusuhan berdasarkan pernyataan dan tindakan tokoh tersebut dalam berita. Fokus pada bagaimana pernyataan atau tindakan tokoh ini mempengaruhi situasi. Peran atau jabatan tokoh: %[3]s.

Pernyataan atau tindakan tokoh: %[4]s

Konteks berita lengkap: %[5]s

Balas HANYA dalam format JSON tanpa kalimat pembuka atau penutup:
{
 "ringkasan": "Ringkasan singkat pernyataan/tindakan tokoh dan potensi dampaknya",
 "skor_risiko": 75,
 "persentase_kerawanan": "75%%",
 "kategori": "TINGGI",
 "faktor_risiko": ["Faktor 1", "Faktor 2"],
 "rekomendasi": "Rekomendasi tindakan mitigasi yang KHUSUS sesuai peran tokoh '%[1]s' sebagai %[3]s dalam isu ini. Rekomendasi harus spesifik dan berbeda dengan tokoh lainnya, berdasarkan jabatan dan pengaruhnya.",
 "urgensi": "SEGERA"
}

Kategori harus salah satu dari: RENDAH (0-30%%), SEDANG (31-60%%), TINGGI (61-85%%), KRITIS (86-100%%)
Urgensi harus salah satu dari: MONITORING, PERHATIAN, SEGERA, DARURAT

Analisis harus spesifik untuk pernyataan/peran tokoh '%[1]s' sebagai %[3]s dalam berita ini. Pastikan rekomendasi disesuaikan dengan peran dan jabatan tokoh, bukan rekomendasi umum untuk semua tokoh.`

func buildPrompt(p Person, context []string, text string) string {
	role := ""
	if p.Position != "" {
		role = ", yang merupakan " + p.Position
	}
	statements := noStatements
	if len(context) > 0 {
		statements = strings.Join(context, ". ")
	}
	return fmt.Sprintf(userPrompt, p.Name, role, p.Position, statements, text)
}

// Seed derives a stable per-person sampling seed in [0, 10000).
func Seed(name string) int {
	sum := md5.Sum([]byte(name))
	n, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)
	return int(n % 10000)
}

// CacheKey identifies a (text, person) classification.
func CacheKey(text, name string) string {
	sum := md5.Sum([]byte(text + "-" + name))
	return hex.EncodeToString(sum[:])
}
